package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	. "github.com/PelionIoT/topologyd/changes"
	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/membership"
	. "github.com/PelionIoT/topologyd/partition"
	. "github.com/PelionIoT/topologyd/routes"
	. "github.com/PelionIoT/topologyd/storage"
	. "github.com/PelionIoT/topologyd/store"
	. "github.com/PelionIoT/topologyd/topology"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
)

const (
	topologyStorePrefix = iota
)

const DefaultMaxConnections = 256

type TopologyServerConfig struct {
	DBFile       string
	Port         int
	NodeID       MemberID
	PollInterval time.Duration
	// InitialTopology seeds the store the first time the server starts.
	// It is ignored once the topology has been initialized.
	InitialTopology map[MemberID]map[uint64]int
	// ServerTLS is optional. The server listens for plain HTTP without it.
	ServerTLS *tls.Config
	// Caps concurrent client connections. Defaults to DefaultMaxConnections
	MaxConnections int
}

type TopologyServer struct {
	httpServer         *http.Server
	listener           net.Listener
	storageDriver      StorageDriver
	topologyStore      TopologyStore
	partitionExecutor  *PoolPartitionExecutor
	membershipExecutor *RegistryMembershipExecutor
	driver             *ChangeDriver
	coordinator        *TopologyChangeCoordinator
	upgrader           websocket.Upgrader
	port               int
	nodeID             MemberID
	initialTopology    map[MemberID]map[uint64]int
	serverTLS          *tls.Config
	maxConnections     int
	localUpdatesDone   chan struct{}
	stopOnce           sync.Once
}

func NewTopologyServer(serverConfig TopologyServerConfig) (*TopologyServer, error) {
	if serverConfig.MaxConnections <= 0 {
		serverConfig.MaxConnections = DefaultMaxConnections
	}

	storageDriver := NewLevelDBStorageDriver(serverConfig.DBFile, nil)
	server := &TopologyServer{
		storageDriver:   storageDriver,
		port:            serverConfig.Port,
		nodeID:          serverConfig.NodeID,
		initialTopology: serverConfig.InitialTopology,
		serverTLS:       serverConfig.ServerTLS,
		maxConnections:  serverConfig.MaxConnections,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		localUpdatesDone: make(chan struct{}),
	}

	err := server.storageDriver.Open()

	if err != nil {
		if err != ECorrupted {
			Log.Errorf("Error creating server: %v", err.Error())

			return nil, err
		}

		Log.Error("Database is corrupted. Attempting automatic recovery now...")

		if err := server.recover(); err != nil {
			Log.Critical("Topology daemon will now exit")

			return nil, EStorage
		}

		Log.Info("Database recovery successful!")
	}

	partitionPool := NewDefaultPartitionPool()

	server.topologyStore = NewPersistentTopologyStore(NewPrefixedStorageDriver([]byte{topologyStorePrefix}, server.storageDriver))
	server.partitionExecutor = NewPoolPartitionExecutor(partitionPool, NewDefaultPartitionFactory())
	server.membershipExecutor = NewRegistryMembershipExecutor(NewDefaultMemberRegistry(), partitionPool)
	server.driver = NewChangeDriver(ChangeDriverConfig{
		Store:         server.topologyStore,
		Factory:       NewApplierFactory(server.membershipExecutor, server.partitionExecutor),
		LocalMemberID: serverConfig.NodeID,
		PollInterval:  serverConfig.PollInterval,
		LocalUpdates:  make(chan TopologyDelta),
	})
	server.coordinator = NewTopologyChangeCoordinator(server.topologyStore, server.driver, nil)

	return server, nil
}

func (server *TopologyServer) recover() error {
	recoverError := server.storageDriver.Recover()

	if recoverError != nil {
		Log.Criticalf("Unable to recover corrupted database. Reason: %v", recoverError.Error())

		return EStorage
	}

	return nil
}

func (server *TopologyServer) Port() int {
	return server.port
}

func (server *TopologyServer) Coordinator() *TopologyChangeCoordinator {
	return server.coordinator
}

// initialize seeds the topology if necessary and brings the local executors
// in line with the committed topology before any change is driven
func (server *TopologyServer) initialize(ctx context.Context) error {
	var clusterTopology *ClusterTopology
	var err error

	if len(server.initialTopology) != 0 {
		clusterTopology, err = InitializeTopology(ctx, server.topologyStore, InitialTopology(server.initialTopology))
	} else {
		clusterTopology, err = server.topologyStore.GetTopology(ctx)
	}

	if err != nil {
		Log.Criticalf("Unable to load the cluster topology: %v", err.Error())

		return err
	}

	if clusterTopology.IsUninitialized() {
		Log.Warningf("The cluster topology is not initialized. Topology changes will be rejected until it is.")

		return nil
	}

	if err := server.partitionExecutor.Recover(ctx, clusterTopology); err != nil {
		Log.Criticalf("Unable to restore local partition replicas: %v", err.Error())

		return err
	}

	if err := server.membershipExecutor.Recover(ctx, clusterTopology); err != nil {
		Log.Criticalf("Unable to restore the member registry: %v", err.Error())

		return err
	}

	Log.Infof("Loaded cluster topology version %d with %d member(s)", clusterTopology.Version, len(clusterTopology.Members))

	return nil
}

func (server *TopologyServer) Start() error {
	if err := server.initialize(context.Background()); err != nil {
		return err
	}

	r := mux.NewRouter()

	topologyEndpoint := &TopologyEndpoint{
		TopologyFacade: server.coordinator,
		Upgrader:       server.upgrader,
	}

	topologyEndpoint.Attach(r)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)

	server.httpServer = &http.Server{
		Handler:     r,
		ReadTimeout: 15 * time.Second,
	}

	listener, err := net.Listen("tcp", "0.0.0.0:"+strconv.Itoa(server.Port()))

	if err != nil {
		Log.Errorf("Error listening on port: %d", server.port)

		server.Stop()

		return err
	}

	listener = netutil.LimitListener(listener, server.maxConnections)

	if server.serverTLS != nil {
		listener = tls.NewListener(listener, server.serverTLS)
	}

	server.listener = listener

	go server.logLocalUpdates()
	server.driver.Start()

	Log.Infof("Node %s listening on port %d", server.nodeID, server.port)

	err = server.httpServer.Serve(server.listener)

	Log.Errorf("Node %s server shutting down. Reason: %v", server.nodeID, err)

	return err
}

// logLocalUpdates drains the changes the driver reports for this node
func (server *TopologyServer) logLocalUpdates() {
	for {
		select {
		case delta := <-server.driver.LocalUpdates:
			switch delta.Type {
			case DeltaMemberGainPartition, DeltaMemberLosePartition, DeltaPartitionStateChange:
				Log.Infof("Node %s: %s partition %d (state=%s, priority=%d)", delta.Member, delta.Type, delta.Partition, delta.PartitionState.State, delta.PartitionState.Priority)
			default:
				Log.Infof("Node %s: %s (state=%s)", delta.Member, delta.Type, delta.MemberState)
			}
		case <-server.localUpdatesDone:
			return
		}
	}
}

func (server *TopologyServer) Stop() error {
	server.stopOnce.Do(func() {
		server.driver.Stop()
		close(server.localUpdatesDone)

		if server.listener != nil {
			server.listener.Close()
		}

		server.storageDriver.Close()
	})

	return nil
}
