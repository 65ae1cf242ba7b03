package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	. "github.com/PelionIoT/topologyd/client"
	"github.com/PelionIoT/topologyd/routes"
	. "github.com/PelionIoT/topologyd/topology"

	"github.com/olekukonko/tablewriter"
)

func apiClient() *APIClient {
	return New(APIClientConfig{Servers: []string{fmt.Sprintf("%s:%d", *optHost, *optPort)}})
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultClientTimeout)
}

func exitWithError(err error) {
	var errorStatus *ErrorStatusCode

	if errors.As(err, &errorStatus) {
		if dbError, ok := errorStatus.DBerror(); ok {
			fmt.Fprintf(os.Stderr, "Error (%d): %s\n", errorStatus.StatusCode, dbError.Error())

			os.Exit(1)
		}
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	os.Exit(1)
}

func printTopology(clusterTopology *ClusterTopology) {
	fmt.Printf("Topology version %d\n", clusterTopology.Version)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Broker", "State", "Partition", "Replica State", "Priority"})

	for _, memberID := range clusterTopology.MemberIDs() {
		memberState := clusterTopology.Members[memberID]
		partitionIDs := memberState.PartitionIDs()

		if len(partitionIDs) == 0 {
			table.Append([]string{string(memberID), string(memberState.State), "", "", ""})

			continue
		}

		for _, partitionID := range partitionIDs {
			partitionState := memberState.Partitions[partitionID]
			table.Append([]string{
				string(memberID),
				string(memberState.State),
				strconv.FormatUint(partitionID, 10),
				string(partitionState.State),
				strconv.Itoa(partitionState.Priority),
			})
		}
	}

	table.Render()

	if clusterTopology.PendingChanges != nil {
		fmt.Printf("Change %d is in progress with %d operation(s) remaining\n", clusterTopology.PendingChanges.ID, len(clusterTopology.PendingChanges.PendingOperations))
	}

	if clusterTopology.LastChange != nil {
		fmt.Printf("Last change %d is %s\n", clusterTopology.LastChange.ID, clusterTopology.LastChange.Status)
	}
}

func printOperations(operations []TransportOperation) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Operation", "Broker", "Partition", "Priority"})

	for i, operation := range operations {
		var partition, priority string

		switch operation.Type {
		case PartitionJoinType, PartitionReconfigurePriorityType:
			partition = strconv.FormatUint(operation.Partition, 10)
			priority = strconv.Itoa(operation.Priority)
		case PartitionLeaveType:
			partition = strconv.FormatUint(operation.Partition, 10)
		}

		table.Append([]string{strconv.Itoa(i), string(operation.Type), string(operation.Member), partition, priority})
	}

	table.Render()
}

func printChange(changeResponse routes.ChangeResponse, dryRun bool) {
	if len(changeResponse.PlannedChanges) == 0 {
		fmt.Println("Nothing to do")

		return
	}

	printOperations(changeResponse.PlannedChanges)

	if dryRun {
		fmt.Println("Expected topology:")
		printTopology(changeResponse.ExpectedTopology)

		return
	}

	fmt.Printf("Started change %d\n", changeResponse.ChangeID)
}

func printChangeStatus(changeStatus routes.ChangeStatusResponse) {
	fmt.Printf("Change %d is %s (started %s)\n", changeStatus.ChangeID, changeStatus.Status, changeStatus.StartedAt.Format(time.RFC3339))

	if changeStatus.CompletedAt != nil {
		fmt.Printf("Finished %s\n", changeStatus.CompletedAt.Format(time.RFC3339))
	}

	if len(changeStatus.Operations) != 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Operation", "Broker", "Partition", "Completed"})

		for i, operationStatus := range changeStatus.Operations {
			completed := ""

			if operationStatus.CompletedAt != nil {
				completed = operationStatus.CompletedAt.Format(time.RFC3339)
			}

			table.Append([]string{
				strconv.Itoa(i),
				string(operationStatus.Operation.Type),
				string(operationStatus.Operation.Member),
				strconv.FormatUint(operationStatus.Operation.Partition, 10),
				completed,
			})
		}

		table.Render()
	}

	if changeStatus.Failure != nil {
		fmt.Printf("Stuck on %s %s since %s: %s\n", changeStatus.Failure.Operation.Type, changeStatus.Failure.Operation.Member, changeStatus.Failure.FailedAt.Format(time.RFC3339), changeStatus.Failure.Error)
		fmt.Printf("Run \"topologyd retry -change=%d\" once the cause is fixed or \"topologyd cancel -change=%d\" to give up\n", changeStatus.ChangeID, changeStatus.ChangeID)
	}
}
