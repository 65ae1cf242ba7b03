package shared

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"time"

	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/topology"

	"gopkg.in/yaml.v2"
)

const (
	MinPollInterval     = 100
	DefaultPollInterval = 5000
)

type YAMLServerConfig struct {
	DBFile          string       `yaml:"db"`
	Port            int          `yaml:"port"`
	NodeID          string       `yaml:"nodeID"`
	LogLevel        string       `yaml:"logLevel"`
	Driver          YAMLDriver   `yaml:"driver"`
	TLS             YAMLTLSFiles `yaml:"tls"`
	InitialTopology []YAMLMember `yaml:"initialTopology"`
}

type YAMLDriver struct {
	// milliseconds
	PollInterval uint64 `yaml:"pollInterval"`
}

type YAMLTLSFiles struct {
	Certificate string `yaml:"certificate"`
	Key         string `yaml:"key"`
}

type YAMLMember struct {
	ID         string          `yaml:"id"`
	Partitions []YAMLPartition `yaml:"partitions"`
}

type YAMLPartition struct {
	ID       uint64 `yaml:"id"`
	Priority int    `yaml:"priority"`
}

func (ysc *YAMLServerConfig) LoadFromFile(file string) error {
	rawConfig, err := ioutil.ReadFile(file)

	if err != nil {
		return err
	}

	err = yaml.Unmarshal(rawConfig, ysc)

	if err != nil {
		return err
	}

	if len(ysc.DBFile) == 0 {
		return errors.New("db must specify the path of the topology database")
	}

	if !isValidPort(ysc.Port) {
		return errors.New(fmt.Sprintf("%d is an invalid port for the topology server", ysc.Port))
	}

	if len(ysc.NodeID) == 0 {
		return errors.New("nodeID is empty")
	}

	if ysc.Driver.PollInterval == 0 {
		ysc.Driver.PollInterval = DefaultPollInterval
	}

	if ysc.Driver.PollInterval < MinPollInterval {
		return errors.New(fmt.Sprintf("The driver poll interval must be at least %d milliseconds", MinPollInterval))
	}

	seenMembers := make(map[string]bool)

	for _, member := range ysc.InitialTopology {
		if len(member.ID) == 0 {
			return errors.New("Member ID is empty in initialTopology")
		}

		if seenMembers[member.ID] {
			return errors.New(fmt.Sprintf("Member %s is listed more than once in initialTopology", member.ID))
		}

		seenMembers[member.ID] = true
		seenPartitions := make(map[uint64]bool)

		for _, partition := range member.Partitions {
			if seenPartitions[partition.ID] {
				return errors.New(fmt.Sprintf("Partition %d is listed more than once for member %s", partition.ID, member.ID))
			}

			if partition.Priority < 0 {
				return errors.New(fmt.Sprintf("Partition %d of member %s has a negative priority", partition.ID, member.ID))
			}

			seenPartitions[partition.ID] = true
		}
	}

	if len(ysc.TLS.Certificate) != 0 || len(ysc.TLS.Key) != 0 {
		certificate, err := ioutil.ReadFile(resolveFilePath(file, ysc.TLS.Certificate))

		if err != nil {
			return errors.New(fmt.Sprintf("Could not load server certificate from %s", ysc.TLS.Certificate))
		}

		key, err := ioutil.ReadFile(resolveFilePath(file, ysc.TLS.Key))

		if err != nil {
			return errors.New(fmt.Sprintf("Could not load server key from %s", ysc.TLS.Key))
		}

		ysc.TLS.Certificate = string(certificate)
		ysc.TLS.Key = string(key)

		_, err = tls.X509KeyPair([]byte(ysc.TLS.Certificate), []byte(ysc.TLS.Key))

		if err != nil {
			return errors.New("The specified server certificate and key represent an invalid public/private key pair")
		}
	}

	if len(ysc.LogLevel) != 0 && !LogLevelIsValid(ysc.LogLevel) {
		return errors.New(fmt.Sprintf("%s is not a valid log level", ysc.LogLevel))
	}

	SetLoggingLevel(ysc.LogLevel)

	return nil
}

func (ysc *YAMLServerConfig) PollInterval() time.Duration {
	return time.Millisecond * time.Duration(ysc.Driver.PollInterval)
}

// Topology converts initialTopology to the member and partition placement
// used to seed an uninitialized topology store
func (ysc *YAMLServerConfig) Topology() map[MemberID]map[uint64]int {
	members := make(map[MemberID]map[uint64]int, len(ysc.InitialTopology))

	for _, member := range ysc.InitialTopology {
		partitions := make(map[uint64]int, len(member.Partitions))

		for _, partition := range member.Partitions {
			partitions[partition.ID] = partition.Priority
		}

		members[MemberID(member.ID)] = partitions
	}

	return members
}

func isValidPort(p int) bool {
	return p >= 0 && p < (1<<16)
}

func resolveFilePath(configFileLocation, file string) string {
	if filepath.IsAbs(file) {
		return file
	}

	return filepath.Join(filepath.Dir(configFileLocation), file)
}
