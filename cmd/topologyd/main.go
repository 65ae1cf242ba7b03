package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
)

type command struct {
	run   func()
	usage string
}

var commands = map[string]command{}

var (
	optConfigFile *string
	optHost       *string
	optPort       *int
	optMember     *string
	optPartition  *uint64
	optPriority   *int
	optBrokers    *string
	optPartitions *uint64
	optRF         *int
	optChange     *uint64
	optDryRun     *bool
)

func init() {
	optConfigFile = flag.String("conf", "", "The config file for this server")
	optHost = flag.String("host", "localhost", "The hostname or ip of the topology server to contact")
	optPort = flag.Int("port", 8080, "The port of the topology server to contact")
	optMember = flag.String("member", "", "A broker ID")
	optPartition = flag.Uint64("partition", 0, "A partition ID")
	optPriority = flag.Int("priority", 0, "The election priority of a partition replica. Higher is preferred")
	optBrokers = flag.String("brokers", "", "A comma separated list of broker IDs")
	optPartitions = flag.Uint64("partitions", 0, "The number of partitions. Zero keeps the current partitions")
	optRF = flag.Int("rf", 1, "The replication factor")
	optChange = flag.Uint64("change", 0, "A topology change ID")
	optDryRun = flag.Bool("dry-run", false, "Show the planned operations and the expected topology without committing them")
}

func registerCommand(name string, run func(), usage string) {
	commands[name] = command{run: run, usage: usage}
}

func printUsage() {
	names := make([]string, 0, len(commands))

	for name, _ := range commands {
		names = append(names, name)
	}

	sort.Strings(names)

	fmt.Fprintf(os.Stderr, "Usage: topologyd <command> [arguments]\n\nThe commands are:\n\n")

	for _, name := range names {
		fmt.Fprintf(os.Stderr, "    %s\n", name)
	}

	fmt.Fprintf(os.Stderr, "\nUse \"topologyd help <command>\" for more information about a command.\n")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if os.Args[1] == "help" {
		if len(os.Args) > 2 {
			if cmd, ok := commands[os.Args[2]]; ok {
				fmt.Fprint(os.Stderr, cmd.usage)

				return
			}
		}

		printUsage()

		return
	}

	cmd, ok := commands[os.Args[1]]

	if !ok {
		fmt.Fprintf(os.Stderr, "topologyd: unknown command \"%s\"\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	flag.CommandLine.Usage = func() {
		fmt.Fprint(os.Stderr, cmd.usage)
		flag.PrintDefaults()
	}

	flag.CommandLine.Parse(os.Args[2:])

	cmd.run()
}

func splitBrokers(brokers string) []string {
	memberIDs := make([]string, 0)

	for _, memberID := range strings.Split(brokers, ",") {
		memberID = strings.TrimSpace(memberID)

		if len(memberID) != 0 {
			memberIDs = append(memberIDs, memberID)
		}
	}

	return memberIDs
}
