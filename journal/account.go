package journal

// Account is a node in the chart of accounts: a qualified name with an open
// bag of tags. Two accounts are equal when their names are equal.
type Account struct {
	Name QName
	Tags map[string]string
}

// NewAccount parses 'name' and returns an account carrying its own copy of 'tags'
func NewAccount(name string, tags map[string]string) (Account, error) {
	qname, err := ParseQName(name)
	if err != nil {
		return Account{}, err
	}
	return Account{Name: qname, Tags: copyTags(tags)}, nil
}

// Tag returns the tag value for 'key', or "" if unset
func (a Account) Tag(key string) string {
	return a.Tags[key]
}

func (a Account) String() string {
	return a.Name.String()
}

// every entity owns its own tag map, so copies are always deep
func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	return copied
}
