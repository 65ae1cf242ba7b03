package main

import (
	"fmt"
	"os"

	"github.com/PelionIoT/topologyd/routes"
	. "github.com/PelionIoT/topologyd/topology"
)

func init() {
	registerCommand("add-broker", addBroker, addBrokerUsage)
	registerCommand("remove-broker", removeBroker, removeBrokerUsage)
	registerCommand("join-partition", joinPartition, joinPartitionUsage)
	registerCommand("leave-partition", leavePartition, leavePartitionUsage)
	registerCommand("set-priority", setPriority, setPriorityUsage)
	registerCommand("scale", scale, scaleUsage)
	registerCommand("force-remove-brokers", forceRemoveBrokers, forceRemoveBrokersUsage)
}

var addBrokerUsage string = `Usage: topologyd add-broker -member=[broker ID] [-dry-run] [-host=localhost] [-port=8080]
`

var removeBrokerUsage string = `Usage: topologyd remove-broker -member=[broker ID] [-dry-run] [-host=localhost] [-port=8080]
`

var joinPartitionUsage string = `Usage: topologyd join-partition -member=[broker ID] -partition=[partition ID] [-priority=0] [-dry-run] [-host=localhost] [-port=8080]
`

var leavePartitionUsage string = `Usage: topologyd leave-partition -member=[broker ID] -partition=[partition ID] [-dry-run] [-host=localhost] [-port=8080]
`

var setPriorityUsage string = `Usage: topologyd set-priority -member=[broker ID] -partition=[partition ID] -priority=[priority] [-dry-run] [-host=localhost] [-port=8080]
`

var scaleUsage string = `Usage: topologyd scale -brokers=[broker ID,...] [-partitions=0] [-rf=1] [-dry-run] [-host=localhost] [-port=8080]

Distributes the partitions round robin over the listed brokers. Brokers that
are not listed give up their partitions and leave the cluster.
`

var forceRemoveBrokersUsage string = `Usage: topologyd force-remove-brokers -brokers=[broker ID,...] [-dry-run] [-host=localhost] [-port=8080]

Removes brokers that are gone for good. Their partitions are forced onto the
remaining replicas first, which may lose writes they alone acknowledged.
`

func requireMember() MemberID {
	if len(*optMember) == 0 {
		fmt.Fprintf(os.Stderr, "No broker specified (-member)\n")

		os.Exit(1)
	}

	return MemberID(*optMember)
}

func requirePartition() uint64 {
	if *optPartition == 0 {
		fmt.Fprintf(os.Stderr, "No partition specified (-partition)\n")

		os.Exit(1)
	}

	return *optPartition
}

func addBroker() {
	memberID := requireMember()
	ctx, cancel := requestContext()
	defer cancel()

	changeResponse, err := apiClient().AddBroker(ctx, memberID, *optDryRun)

	if err != nil {
		exitWithError(err)
	}

	printChange(changeResponse, *optDryRun)
}

func removeBroker() {
	memberID := requireMember()
	ctx, cancel := requestContext()
	defer cancel()

	changeResponse, err := apiClient().RemoveBroker(ctx, memberID, *optDryRun)

	if err != nil {
		exitWithError(err)
	}

	printChange(changeResponse, *optDryRun)
}

func joinPartition() {
	memberID := requireMember()
	partitionID := requirePartition()
	ctx, cancel := requestContext()
	defer cancel()

	changeResponse, err := apiClient().JoinPartition(ctx, memberID, partitionID, *optPriority, *optDryRun)

	if err != nil {
		exitWithError(err)
	}

	printChange(changeResponse, *optDryRun)
}

func leavePartition() {
	memberID := requireMember()
	partitionID := requirePartition()
	ctx, cancel := requestContext()
	defer cancel()

	changeResponse, err := apiClient().LeavePartition(ctx, memberID, partitionID, *optDryRun)

	if err != nil {
		exitWithError(err)
	}

	printChange(changeResponse, *optDryRun)
}

func setPriority() {
	memberID := requireMember()
	partitionID := requirePartition()
	ctx, cancel := requestContext()
	defer cancel()

	changeResponse, err := apiClient().ReconfigurePriority(ctx, memberID, partitionID, *optPriority, *optDryRun)

	if err != nil {
		exitWithError(err)
	}

	printChange(changeResponse, *optDryRun)
}

func scale() {
	brokers := splitBrokers(*optBrokers)

	if len(brokers) == 0 {
		fmt.Fprintf(os.Stderr, "No brokers specified (-brokers)\n")

		os.Exit(1)
	}

	scaleRequest := routes.ScaleRequest{
		Brokers:           make([]MemberID, len(brokers)),
		PartitionCount:    *optPartitions,
		ReplicationFactor: *optRF,
	}

	for i, broker := range brokers {
		scaleRequest.Brokers[i] = MemberID(broker)
	}

	ctx, cancel := requestContext()
	defer cancel()

	changeResponse, err := apiClient().Scale(ctx, scaleRequest, *optDryRun)

	if err != nil {
		exitWithError(err)
	}

	printChange(changeResponse, *optDryRun)
}

func forceRemoveBrokers() {
	brokers := splitBrokers(*optBrokers)

	if len(brokers) == 0 {
		fmt.Fprintf(os.Stderr, "No brokers specified (-brokers)\n")

		os.Exit(1)
	}

	memberIDs := make([]MemberID, len(brokers))

	for i, broker := range brokers {
		memberIDs[i] = MemberID(broker)
	}

	ctx, cancel := requestContext()
	defer cancel()

	changeResponse, err := apiClient().ForceRemoveBrokers(ctx, memberIDs, *optDryRun)

	if err != nil {
		exitWithError(err)
	}

	printChange(changeResponse, *optDryRun)
}
