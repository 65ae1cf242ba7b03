package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	. "github.com/PelionIoT/topologyd/logging"
	"github.com/PelionIoT/topologyd/routes"
	. "github.com/PelionIoT/topologyd/topology"

	"github.com/gorilla/websocket"
)

const DefaultClientTimeout = time.Second * 10

type APIClientConfig struct {
	Servers []string
	Timeout time.Duration
}

type APIClient struct {
	servers         []string
	nextServerIndex int
	mu              sync.Mutex
	httpClient      *http.Client
	dialer          *websocket.Dialer
}

func New(config APIClientConfig) *APIClient {
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}

	return &APIClient{
		servers:         config.Servers,
		nextServerIndex: 0,
		httpClient:      &http.Client{Timeout: config.Timeout},
		dialer:          &websocket.Dialer{HandshakeTimeout: config.Timeout},
	}
}

func (client *APIClient) nextServer() (server string) {
	client.mu.Lock()
	defer client.mu.Unlock()

	if len(client.servers) == 0 {
		return
	}

	server = client.servers[client.nextServerIndex]
	client.nextServerIndex = (client.nextServerIndex + 1) % len(client.servers)

	return
}

func (client *APIClient) Topology(ctx context.Context) (*ClusterTopology, error) {
	encodedTopology, err := client.sendRequest(ctx, "GET", "/topology", nil)

	if err != nil {
		return nil, err
	}

	var clusterTopology ClusterTopology

	if err := json.Unmarshal(encodedTopology, &clusterTopology); err != nil {
		return nil, err
	}

	return &clusterTopology, nil
}

func (client *APIClient) AddBroker(ctx context.Context, memberID MemberID, dryRun bool) (routes.ChangeResponse, error) {
	return client.change(ctx, "POST", withDryRun("/topology/brokers/"+url.PathEscape(string(memberID)), dryRun), nil)
}

func (client *APIClient) RemoveBroker(ctx context.Context, memberID MemberID, dryRun bool) (routes.ChangeResponse, error) {
	return client.change(ctx, "DELETE", withDryRun("/topology/brokers/"+url.PathEscape(string(memberID)), dryRun), nil)
}

func (client *APIClient) JoinPartition(ctx context.Context, memberID MemberID, partitionID uint64, priority int, dryRun bool) (routes.ChangeResponse, error) {
	endpointURL := fmt.Sprintf("/topology/brokers/%s/partitions/%d?priority=%d", url.PathEscape(string(memberID)), partitionID, priority)

	return client.change(ctx, "POST", withDryRun(endpointURL, dryRun), nil)
}

func (client *APIClient) LeavePartition(ctx context.Context, memberID MemberID, partitionID uint64, dryRun bool) (routes.ChangeResponse, error) {
	endpointURL := fmt.Sprintf("/topology/brokers/%s/partitions/%d", url.PathEscape(string(memberID)), partitionID)

	return client.change(ctx, "DELETE", withDryRun(endpointURL, dryRun), nil)
}

func (client *APIClient) ReconfigurePriority(ctx context.Context, memberID MemberID, partitionID uint64, priority int, dryRun bool) (routes.ChangeResponse, error) {
	body, err := json.Marshal(routes.PriorityRequest{Priority: &priority})

	if err != nil {
		return routes.ChangeResponse{}, err
	}

	endpointURL := fmt.Sprintf("/topology/brokers/%s/partitions/%d/priority", url.PathEscape(string(memberID)), partitionID)

	return client.change(ctx, "PUT", withDryRun(endpointURL, dryRun), body)
}

func (client *APIClient) Scale(ctx context.Context, scaleRequest routes.ScaleRequest, dryRun bool) (routes.ChangeResponse, error) {
	body, err := json.Marshal(scaleRequest)

	if err != nil {
		return routes.ChangeResponse{}, err
	}

	return client.change(ctx, "POST", withDryRun("/topology/scale", dryRun), body)
}

func (client *APIClient) ForceRemoveBrokers(ctx context.Context, memberIDs []MemberID, dryRun bool) (routes.ChangeResponse, error) {
	body, err := json.Marshal(routes.ForceRemoveRequest{Brokers: memberIDs})

	if err != nil {
		return routes.ChangeResponse{}, err
	}

	return client.change(ctx, "POST", withDryRun("/topology/force-remove", dryRun), body)
}

func (client *APIClient) ApplyOperations(ctx context.Context, operations []Operation, dryRun bool) (routes.ChangeResponse, error) {
	operationsBody := routes.OperationsBody{Operations: make([]TransportOperation, len(operations))}

	for i, operation := range operations {
		operationsBody.Operations[i] = ToTransportOperation(operation)
	}

	body, err := json.Marshal(operationsBody)

	if err != nil {
		return routes.ChangeResponse{}, err
	}

	return client.change(ctx, "POST", withDryRun("/topology/operations", dryRun), body)
}

func (client *APIClient) ChangeStatus(ctx context.Context, changeID uint64) (routes.ChangeStatusResponse, error) {
	encodedStatus, err := client.sendRequest(ctx, "GET", "/topology/changes/"+strconv.FormatUint(changeID, 10), nil)

	if err != nil {
		return routes.ChangeStatusResponse{}, err
	}

	var changeStatus routes.ChangeStatusResponse

	if err := json.Unmarshal(encodedStatus, &changeStatus); err != nil {
		return routes.ChangeStatusResponse{}, err
	}

	return changeStatus, nil
}

func (client *APIClient) CancelChange(ctx context.Context, changeID uint64) (*ClusterTopology, error) {
	encodedTopology, err := client.sendRequest(ctx, "DELETE", "/topology/changes/"+strconv.FormatUint(changeID, 10), nil)

	if err != nil {
		return nil, err
	}

	var clusterTopology ClusterTopology

	if err := json.Unmarshal(encodedTopology, &clusterTopology); err != nil {
		return nil, err
	}

	return &clusterTopology, nil
}

func (client *APIClient) RetryChange(ctx context.Context, changeID uint64) error {
	_, err := client.sendRequest(ctx, "POST", fmt.Sprintf("/topology/changes/%d/retry", changeID), nil)

	return err
}

// WatchTopology streams topology snapshots from the server. The returned
// channel is closed when ctx is done or the connection is lost.
func (client *APIClient) WatchTopology(ctx context.Context) (<-chan *ClusterTopology, error) {
	conn, _, err := client.dialer.DialContext(ctx, fmt.Sprintf("ws://%s/topology/watch", client.nextServer()), nil)

	if err != nil {
		return nil, err
	}

	snapshots := make(chan *ClusterTopology)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(snapshots)

		for {
			var clusterTopology ClusterTopology

			if err := conn.ReadJSON(&clusterTopology); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					Log.Warningf("Topology watch connection was lost: %v", err)
				}

				return
			}

			select {
			case snapshots <- &clusterTopology:
			case <-ctx.Done():
				return
			}
		}
	}()

	return snapshots, nil
}

func (client *APIClient) change(ctx context.Context, httpVerb string, endpointURL string, body []byte) (routes.ChangeResponse, error) {
	encodedChange, err := client.sendRequest(ctx, httpVerb, endpointURL, body)

	if err != nil {
		return routes.ChangeResponse{}, err
	}

	var changeResponse routes.ChangeResponse

	if err := json.Unmarshal(encodedChange, &changeResponse); err != nil {
		return routes.ChangeResponse{}, err
	}

	return changeResponse, nil
}

func withDryRun(endpointURL string, dryRun bool) string {
	if !dryRun {
		return endpointURL
	}

	u, err := url.Parse(endpointURL)

	if err != nil {
		return endpointURL
	}

	query := u.Query()
	query.Set("dryRun", "true")
	u.RawQuery = query.Encode()

	return u.String()
}

func (client *APIClient) sendRequest(ctx context.Context, httpVerb string, endpointURL string, body []byte) ([]byte, error) {
	u := fmt.Sprintf("http://%s%s", client.nextServer(), endpointURL)
	request, err := http.NewRequest(httpVerb, u, bytes.NewReader(body))

	if err != nil {
		return nil, err
	}

	request = request.WithContext(ctx)

	resp, err := client.httpClient.Do(request)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorMessage, err := ioutil.ReadAll(resp.Body)

		if err != nil {
			return nil, err
		}

		return nil, &ErrorStatusCode{Message: string(errorMessage), StatusCode: resp.StatusCode}
	}

	responseBody, err := ioutil.ReadAll(resp.Body)

	if err != nil {
		return nil, err
	}

	return responseBody, nil
}
