package main

import (
	"fmt"
)

var templateConfig string = `# The db field specifies the directory where the topology database resides on
# disk. If it doesn't exist it will be created.
# **REQUIRED**
db: /var/lib/topologyd

# The port field specifies the port number on which to run the topology server
# **REQUIRED**
port: 8080

# The ID of the broker this server runs on. Changes to this broker's
# partitions are applied locally.
# **REQUIRED**
nodeID: broker-1

# The log level configures how detailed the output produced by the server is.
# Valid values are: critical, error, warning, notice, info, debug
logLevel: info

# The change driver checks for pending topology changes at least this often.
# It also wakes up whenever the topology changes. Interval is in milliseconds.
driver:
    pollInterval: 5000

# Serve HTTPS instead of HTTP. Relative paths are resolved relative to the
# location of this file.
# tls:
#     certificate: server.cert.pem
#     key: server.key.pem

# The topology to start from if the topology database is empty. Every member
# listed here starts out ACTIVE with the listed partitions. It is ignored once
# the topology has been initialized.
initialTopology:
    - id: broker-1
      partitions:
          - id: 1
            priority: 1
    - id: broker-2
      partitions:
          - id: 1
            priority: 0
`

func init() {
	registerCommand("conf", generateConfig, confUsage)
}

var confUsage string = `Usage: topologyd conf
`

func generateConfig() {
	fmt.Print(templateConfig)
}
