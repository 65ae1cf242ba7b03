package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	. "github.com/PelionIoT/topologyd/client"
	. "github.com/PelionIoT/topologyd/error"
	"github.com/PelionIoT/topologyd/routes"
	. "github.com/PelionIoT/topologyd/topology"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("APIClient", func() {
	var server *ghttp.Server
	var client *APIClient

	clusterTopology := func() *ClusterTopology {
		return NewClusterTopology().
			AddMember("1", NewMemberState(MemberActive, map[uint64]PartitionState{1: ActivePartition(0)})).
			WithVersion(2)
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		u, err := url.Parse(server.URL())

		Expect(err).Should(BeNil())

		client = New(APIClientConfig{Servers: []string{u.Host}})
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("#Topology", func() {
		It("Should decode the topology returned by the server", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/topology"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, clusterTopology()),
			))

			current, err := client.Topology(context.Background())

			Expect(err).Should(BeNil())
			Expect(current).Should(Equal(clusterTopology()))
		})
	})

	Describe("#AddBroker", func() {
		It("Should post to the broker and decode the planned changes", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/topology/brokers/2"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, routes.ChangeResponse{
					ChangeID:       3,
					PlannedChanges: []TransportOperation{{Type: MemberJoinType, Member: "2"}},
				}),
			))

			changeResponse, err := client.AddBroker(context.Background(), "2", false)

			Expect(err).Should(BeNil())
			Expect(changeResponse.ChangeID).Should(Equal(uint64(3)))
			Expect(changeResponse.PlannedChanges).Should(Equal([]TransportOperation{{Type: MemberJoinType, Member: "2"}}))
		})

		It("Should set the dryRun query parameter when simulating", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/topology/brokers/2", "dryRun=true"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, routes.ChangeResponse{}),
			))

			_, err := client.AddBroker(context.Background(), "2", true)

			Expect(err).Should(BeNil())
		})

		It("Should let the caller match the error returned by the server", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/topology/brokers/1"),
				ghttp.RespondWith(http.StatusUnprocessableEntity, EMemberAlreadyExists.JSON()),
			))

			_, err := client.AddBroker(context.Background(), "1", false)

			var errorStatus *ErrorStatusCode

			Expect(errors.As(err, &errorStatus)).Should(BeTrue())
			Expect(errorStatus.StatusCode).Should(Equal(http.StatusUnprocessableEntity))
			Expect(errors.Is(err, EMemberAlreadyExists)).Should(BeTrue())
			Expect(errors.Is(err, ENoSuchMember)).Should(BeFalse())
		})
	})

	Describe("#JoinPartition", func() {
		It("Should pass the priority as a query parameter", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/topology/brokers/2/partitions/7", "priority=3"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, routes.ChangeResponse{}),
			))

			_, err := client.JoinPartition(context.Background(), "2", 7, 3, false)

			Expect(err).Should(BeNil())
		})
	})

	Describe("#ReconfigurePriority", func() {
		It("Should send the priority in the body", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("PUT", "/topology/brokers/2/partitions/7/priority"),
				ghttp.VerifyJSON(`{"priority":0}`),
				ghttp.RespondWithJSONEncoded(http.StatusOK, routes.ChangeResponse{}),
			))

			_, err := client.ReconfigurePriority(context.Background(), "2", 7, 0, false)

			Expect(err).Should(BeNil())
		})
	})

	Describe("#Scale", func() {
		It("Should send the target brokers and replication factor", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/topology/scale"),
				ghttp.VerifyJSON(`{"brokers":["1","2"],"partitionCount":4,"replicationFactor":2}`),
				ghttp.RespondWithJSONEncoded(http.StatusOK, routes.ChangeResponse{}),
			))

			_, err := client.Scale(context.Background(), routes.ScaleRequest{Brokers: []MemberID{"1", "2"}, PartitionCount: 4, ReplicationFactor: 2}, false)

			Expect(err).Should(BeNil())
		})
	})

	Describe("#ForceRemoveBrokers", func() {
		It("Should send the brokers to remove", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/topology/force-remove", "dryRun=true"),
				ghttp.VerifyJSON(`{"brokers":["2","3"]}`),
				ghttp.RespondWithJSONEncoded(http.StatusOK, routes.ChangeResponse{}),
			))

			_, err := client.ForceRemoveBrokers(context.Background(), []MemberID{"2", "3"}, true)

			Expect(err).Should(BeNil())
		})
	})

	Describe("#ApplyOperations", func() {
		It("Should send the operations in their transport form", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/topology/operations"),
				ghttp.VerifyJSON(`{"operations":[{"type":"partitionLeave","memberId":"1","partitionId":1}]}`),
				ghttp.RespondWithJSONEncoded(http.StatusOK, routes.ChangeResponse{}),
			))

			_, err := client.ApplyOperations(context.Background(), []Operation{PartitionLeaveOperation{Member: "1", Partition: 1}}, false)

			Expect(err).Should(BeNil())
		})
	})

	Describe("#ChangeStatus", func() {
		It("Should decode the change status", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/topology/changes/3"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, routes.ChangeStatusResponse{ChangeID: 3, Status: ChangeCompleted}),
			))

			changeStatus, err := client.ChangeStatus(context.Background(), 3)

			Expect(err).Should(BeNil())
			Expect(changeStatus.Status).Should(Equal(ChangeCompleted))
		})
	})

	Describe("#CancelChange and #RetryChange", func() {
		It("Should address the change by ID", func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("DELETE", "/topology/changes/3"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, clusterTopology()),
				),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/topology/changes/3/retry"),
					ghttp.RespondWith(http.StatusConflict, EChangeNotStuck.JSON()),
				),
			)

			_, err := client.CancelChange(context.Background(), 3)

			Expect(err).Should(BeNil())

			err = client.RetryChange(context.Background(), 3)

			Expect(errors.Is(err, EChangeNotStuck)).Should(BeTrue())
		})
	})

	Describe("#WatchTopology", func() {
		It("Should deliver the snapshots sent by the server and stop when the context is cancelled", func() {
			upgrader := websocket.Upgrader{}
			router := mux.NewRouter()
			router.HandleFunc("/topology/watch", func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)

				if err != nil {
					return
				}

				defer conn.Close()

				conn.WriteJSON(clusterTopology())
				conn.WriteJSON(clusterTopology().WithVersion(3))
				conn.ReadMessage()
			})
			server.AppendHandlers(router.ServeHTTP)

			ctx, cancel := context.WithCancel(context.Background())
			snapshots, err := client.WatchTopology(ctx)

			Expect(err).Should(BeNil())

			var snapshot *ClusterTopology

			Eventually(snapshots).Should(Receive(&snapshot))
			Expect(snapshot.Version).Should(Equal(uint64(2)))
			Eventually(snapshots).Should(Receive(&snapshot))
			Expect(snapshot.Version).Should(Equal(uint64(3)))

			cancel()

			Eventually(snapshots, time.Second).Should(BeClosed())
		})
	})
})
