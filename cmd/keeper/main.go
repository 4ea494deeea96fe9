// Command keeper maintains double-entry books in a version-controlled data
// directory and serves them over a JSON API.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/brightbooks/keeper/journal"
	"github.com/brightbooks/keeper/server"
	"github.com/brightbooks/keeper/store"
	"github.com/brightbooks/keeper/vcs"
)

func usage(flagSet *flag.FlagSet) string {
	oldOutput := flagSet.Output()
	buf := bytes.NewBuffer(nil)
	flagSet.SetOutput(buf)
	flagSet.Usage()
	flagSet.SetOutput(oldOutput)
	return buf.String()
}

func requireFlags(flagSet *flag.FlagSet) (err error) {
	setFlags := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})
	var missingFlags []string
	flagSet.VisitAll(func(f *flag.Flag) {
		if strings.HasPrefix(f.Usage, "Required: ") && !setFlags[f.Name] {
			missingFlags = append(missingFlags, f.Name)
		}
	})
	if len(missingFlags) > 0 {
		return errors.Errorf("Missing required flags: %s", missingFlags)
	}
	return nil
}

// check validates the books and reports failed balance assertions
func check(db *store.Store, logger *zap.Logger) error {
	var failures []journal.AssertionFailure
	err := db.WithJournal(func(j *journal.Journal) error {
		if err := j.Validate(); err != nil {
			return err
		}
		failures = j.FailedAssertions()
		return nil
	})
	if err != nil {
		return err
	}
	for _, failure := range failures {
		fmt.Println(failure.String())
	}
	if len(failures) > 0 {
		return errors.Errorf("%d balance assertions failed", len(failures))
	}
	logger.Info("All balance assertions hold")
	return nil
}

func run() (usageErr bool, err error) {
	flagSet := flag.NewFlagSet("keeper", flag.ContinueOnError)
	isServer := flagSet.Bool("server", false, "Starts the keeper http server until terminated. Without it, validates the books and exits")
	serverPort := flagSet.Uint("port", 0, "Sets the port the server listens on. Defaults to 8080. Implies -server")
	compact := flagSet.Bool("compact", false, "Renumbers all transactions into date order before anything else")
	dataDirName := flagSet.String("data", "", "Required: Path to the data directory")
	journalFileName := flagSet.String("journal", "journal.json", "Journal file name inside the data directory")
	requestVersion := flagSet.Bool("version", false, "Print the version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return true, err
	}
	if *requestVersion {
		fmt.Println(server.Version)
		return false, nil
	}

	if err := requireFlags(flagSet); err != nil {
		return true, errors.Errorf("%s\n%s", err.Error(), usage(flagSet))
	}

	*isServer = *isServer || *serverPort != 0
	if *serverPort == 0 {
		*serverPort = 8080
	}
	port := uint16(*serverPort)
	if uint(port) != *serverPort {
		return true, errors.Errorf("Port number must be a positive 16-bit integer: %d", *serverPort)
	}

	logger, err := zap.NewProduction()
	if os.Getenv("DEVELOPMENT") == "true" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return false, err
	}

	repo, err := vcs.Open(*dataDirName)
	if err != nil {
		return false, errors.Wrapf(err, "Error opening data directory '%s'", *dataDirName)
	}
	journalFile := repo.File(filepath.Join(*dataDirName, *journalFileName))
	db, err := store.NewFromFile(journalFile, logger)
	if err != nil {
		return false, err
	}

	if *compact {
		if err := db.Compact(); err != nil {
			return false, err
		}
		logger.Info("Compacted journal")
	}

	if !*isServer {
		return false, check(db, logger)
	}
	gin.SetMode(gin.ReleaseMode)
	err = server.Run(fmt.Sprintf("0.0.0.0:%d", port), db, logger)
	if err != nil {
		logger.Error("Server run failed", zap.Error(err))
	}
	return false, err
}

func main() {
	usageErr, err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if usageErr {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
