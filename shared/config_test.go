package shared_test

import (
	"io/ioutil"
	"os"
	"time"

	. "github.com/PelionIoT/topologyd/shared"
	. "github.com/PelionIoT/topologyd/topology"
	. "github.com/PelionIoT/topologyd/util"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("YAMLServerConfig", func() {
	var configFile string

	writeConfig := func(config string) {
		Expect(ioutil.WriteFile(configFile, []byte(config), 0644)).Should(BeNil())
	}

	BeforeEach(func() {
		configFile = "/tmp/topologyd-config-" + RandomString() + ".yaml"
	})

	AfterEach(func() {
		os.Remove(configFile)
	})

	It("Should load a valid configuration", func() {
		writeConfig(`
db: /tmp/topologyd
port: 8080
nodeID: broker-1
logLevel: info
driver:
  pollInterval: 250
initialTopology:
  - id: broker-1
    partitions:
      - id: 1
        priority: 1
  - id: broker-2
    partitions:
      - id: 1
        priority: 0
`)

		var config YAMLServerConfig

		Expect(config.LoadFromFile(configFile)).Should(BeNil())
		Expect(config.NodeID).Should(Equal("broker-1"))
		Expect(config.PollInterval()).Should(Equal(time.Millisecond * 250))
		Expect(config.Topology()).Should(Equal(map[MemberID]map[uint64]int{
			"broker-1": {1: 1},
			"broker-2": {1: 0},
		}))
	})

	It("Should default the poll interval", func() {
		writeConfig("db: /tmp/topologyd\nport: 8080\nnodeID: broker-1\n")

		var config YAMLServerConfig

		Expect(config.LoadFromFile(configFile)).Should(BeNil())
		Expect(config.Driver.PollInterval).Should(Equal(uint64(DefaultPollInterval)))
		Expect(config.Topology()).Should(BeEmpty())
	})

	It("Should reject invalid configurations", func() {
		invalidConfigs := []string{
			"port: 8080\nnodeID: broker-1\n",
			"db: /tmp/topologyd\nport: 70000\nnodeID: broker-1\n",
			"db: /tmp/topologyd\nport: 8080\n",
			"db: /tmp/topologyd\nport: 8080\nnodeID: broker-1\ndriver:\n  pollInterval: 10\n",
			"db: /tmp/topologyd\nport: 8080\nnodeID: broker-1\nlogLevel: loud\n",
			"db: /tmp/topologyd\nport: 8080\nnodeID: broker-1\ninitialTopology:\n  - id: broker-1\n    partitions:\n      - id: 1\n        priority: -1\n",
			"db: /tmp/topologyd\nport: 8080\nnodeID: broker-1\ninitialTopology:\n  - id: broker-1\n  - id: broker-1\n",
			"db: /tmp/topologyd\nport: 8080\nnodeID: broker-1\ntls:\n  certificate: missing.pem\n  key: missing.key\n",
		}

		for _, invalidConfig := range invalidConfigs {
			writeConfig(invalidConfig)

			var config YAMLServerConfig

			Expect(config.LoadFromFile(configFile)).ShouldNot(BeNil(), invalidConfig)
		}
	})

	It("Should fail if the file does not exist", func() {
		var config YAMLServerConfig

		Expect(config.LoadFromFile(configFile)).ShouldNot(BeNil())
	})
})
