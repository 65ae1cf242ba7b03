package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func init() {
	registerCommand("topology", showTopology, topologyUsage)
	registerCommand("watch", watchTopology, watchUsage)
	registerCommand("change", showChange, changeUsage)
	registerCommand("cancel", cancelChange, cancelUsage)
	registerCommand("retry", retryChange, retryUsage)
}

var topologyUsage string = `Usage: topologyd topology [-host=localhost] [-port=8080]
`

var watchUsage string = `Usage: topologyd watch [-host=localhost] [-port=8080]

Prints the topology every time it changes until interrupted.
`

var changeUsage string = `Usage: topologyd change -change=[change ID] [-host=localhost] [-port=8080]
`

var cancelUsage string = `Usage: topologyd cancel -change=[change ID] [-host=localhost] [-port=8080]

Drops the operations of the change that have not started yet. An operation
that is already being applied finishes first.
`

var retryUsage string = `Usage: topologyd retry -change=[change ID] [-host=localhost] [-port=8080]

Runs the failed operation of a stuck change again.
`

func requireChange() uint64 {
	if *optChange == 0 {
		fmt.Fprintf(os.Stderr, "No change specified (-change)\n")

		os.Exit(1)
	}

	return *optChange
}

func showTopology() {
	ctx, cancel := requestContext()
	defer cancel()

	clusterTopology, err := apiClient().Topology(ctx)

	if err != nil {
		exitWithError(err)
	}

	printTopology(clusterTopology)
}

func watchTopology() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)

	go func() {
		<-interrupts
		cancel()
	}()

	snapshots, err := apiClient().WatchTopology(ctx)

	if err != nil {
		exitWithError(err)
	}

	for clusterTopology := range snapshots {
		printTopology(clusterTopology)
		fmt.Println()
	}
}

func showChange() {
	changeID := requireChange()
	ctx, cancel := requestContext()
	defer cancel()

	changeStatus, err := apiClient().ChangeStatus(ctx, changeID)

	if err != nil {
		exitWithError(err)
	}

	printChangeStatus(changeStatus)
}

func cancelChange() {
	changeID := requireChange()
	ctx, cancel := requestContext()
	defer cancel()

	clusterTopology, err := apiClient().CancelChange(ctx, changeID)

	if err != nil {
		exitWithError(err)
	}

	fmt.Printf("Cancelled change %d\n", changeID)
	printTopology(clusterTopology)
}

func retryChange() {
	changeID := requireChange()
	ctx, cancel := requestContext()
	defer cancel()

	if err := apiClient().RetryChange(ctx, changeID); err != nil {
		exitWithError(err)
	}

	fmt.Printf("Retrying change %d\n", changeID)
}
