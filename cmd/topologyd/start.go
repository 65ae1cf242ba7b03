package main

import (
	"crypto/tls"
	"fmt"
	"os"

	. "github.com/PelionIoT/topologyd/server"
	. "github.com/PelionIoT/topologyd/shared"
	. "github.com/PelionIoT/topologyd/topology"
)

func init() {
	registerCommand("start", startServer, startUsage)
}

var startUsage string = `Usage: topologyd start -conf=[config file]
`

func startServer() {
	var sc YAMLServerConfig

	err := sc.LoadFromFile(*optConfigFile)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load config file: %s\n", err.Error())

		os.Exit(1)
	}

	serverConfig := TopologyServerConfig{
		DBFile:          sc.DBFile,
		Port:            sc.Port,
		NodeID:          MemberID(sc.NodeID),
		PollInterval:    sc.PollInterval(),
		InitialTopology: sc.Topology(),
	}

	if len(sc.TLS.Certificate) != 0 {
		certificate, err := tls.X509KeyPair([]byte(sc.TLS.Certificate), []byte(sc.TLS.Key))

		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to load server certificate: %s\n", err.Error())

			os.Exit(1)
		}

		serverConfig.ServerTLS = &tls.Config{Certificates: []tls.Certificate{certificate}}
	}

	server, err := NewTopologyServer(serverConfig)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to create server: %s\n", err.Error())

		os.Exit(1)
	}

	server.Start()
}
