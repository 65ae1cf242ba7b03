package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	. "github.com/PelionIoT/topologyd/changes"
	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/requests"
	. "github.com/PelionIoT/topologyd/topology"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const watchWriteTimeout = time.Second * 10

type TopologyEndpoint struct {
	TopologyFacade TopologyFacade
	Upgrader       websocket.Upgrader
}

func (topologyEndpoint *TopologyEndpoint) Attach(router *mux.Router) {
	router.HandleFunc("/topology", func(w http.ResponseWriter, r *http.Request) {
		clusterTopology, err := topologyEndpoint.TopologyFacade.Topology(r.Context())

		if err != nil {
			Log.Warningf("GET /topology: %v", err)

			respondWithError(w, err)

			return
		}

		respondWithJSON(w, http.StatusOK, clusterTopology)
	}).Methods("GET")

	router.HandleFunc("/topology/watch", func(w http.ResponseWriter, r *http.Request) {
		conn, err := topologyEndpoint.Upgrader.Upgrade(w, r, nil)

		if err != nil {
			Log.Warningf("GET /topology/watch: Unable to upgrade connection: %v", err)

			return
		}

		topologyEndpoint.watch(conn)
	}).Methods("GET")

	router.HandleFunc("/topology/brokers/{memberID}", func(w http.ResponseWriter, r *http.Request) {
		topologyEndpoint.change(w, r, "POST /topology/brokers/{memberID}", AddBrokers(MemberID(mux.Vars(r)["memberID"])))
	}).Methods("POST")

	router.HandleFunc("/topology/brokers/{memberID}", func(w http.ResponseWriter, r *http.Request) {
		topologyEndpoint.change(w, r, "DELETE /topology/brokers/{memberID}", RemoveBrokers(MemberID(mux.Vars(r)["memberID"])))
	}).Methods("DELETE")

	router.HandleFunc("/topology/brokers/{memberID}/partitions/{partitionID}", func(w http.ResponseWriter, r *http.Request) {
		partitionID, err := strconv.ParseUint(mux.Vars(r)["partitionID"], 10, 64)

		if err != nil {
			Log.Warningf("POST /topology/brokers/{memberID}/partitions/{partitionID}: Unable to parse partition ID as uint64: %v", err)

			respondWithError(w, EInvalidRequest)

			return
		}

		var priority int

		if rawPriority := r.URL.Query().Get("priority"); rawPriority != "" {
			priority, err = strconv.Atoi(rawPriority)

			if err != nil {
				Log.Warningf("POST /topology/brokers/{memberID}/partitions/{partitionID}: Unable to parse priority as an integer: %v", err)

				respondWithError(w, EInvalidRequest)

				return
			}
		}

		topologyEndpoint.change(w, r, "POST /topology/brokers/{memberID}/partitions/{partitionID}", JoinPartition(MemberID(mux.Vars(r)["memberID"]), partitionID, priority))
	}).Methods("POST")

	router.HandleFunc("/topology/brokers/{memberID}/partitions/{partitionID}", func(w http.ResponseWriter, r *http.Request) {
		partitionID, err := strconv.ParseUint(mux.Vars(r)["partitionID"], 10, 64)

		if err != nil {
			Log.Warningf("DELETE /topology/brokers/{memberID}/partitions/{partitionID}: Unable to parse partition ID as uint64: %v", err)

			respondWithError(w, EInvalidRequest)

			return
		}

		topologyEndpoint.change(w, r, "DELETE /topology/brokers/{memberID}/partitions/{partitionID}", LeavePartition(MemberID(mux.Vars(r)["memberID"]), partitionID))
	}).Methods("DELETE")

	router.HandleFunc("/topology/brokers/{memberID}/partitions/{partitionID}/priority", func(w http.ResponseWriter, r *http.Request) {
		partitionID, err := strconv.ParseUint(mux.Vars(r)["partitionID"], 10, 64)

		if err != nil {
			Log.Warningf("PUT /topology/brokers/{memberID}/partitions/{partitionID}/priority: Unable to parse partition ID as uint64: %v", err)

			respondWithError(w, EInvalidRequest)

			return
		}

		var priorityRequest PriorityRequest

		if err := json.NewDecoder(r.Body).Decode(&priorityRequest); err != nil || priorityRequest.Priority == nil {
			Log.Warningf("PUT /topology/brokers/{memberID}/partitions/{partitionID}/priority: Unable to parse request body: %v", err)

			respondWithError(w, EInvalidRequest)

			return
		}

		topologyEndpoint.change(w, r, "PUT /topology/brokers/{memberID}/partitions/{partitionID}/priority", ReconfigurePriority(MemberID(mux.Vars(r)["memberID"]), partitionID, *priorityRequest.Priority))
	}).Methods("PUT")

	router.HandleFunc("/topology/scale", func(w http.ResponseWriter, r *http.Request) {
		var scaleRequest ScaleRequest

		if err := json.NewDecoder(r.Body).Decode(&scaleRequest); err != nil {
			Log.Warningf("POST /topology/scale: Unable to parse request body: %v", err)

			respondWithError(w, EInvalidRequest)

			return
		}

		topologyEndpoint.change(w, r, "POST /topology/scale", Scale(scaleRequest.Brokers, scaleRequest.PartitionCount, scaleRequest.ReplicationFactor))
	}).Methods("POST")

	router.HandleFunc("/topology/force-remove", func(w http.ResponseWriter, r *http.Request) {
		var forceRemoveRequest ForceRemoveRequest

		if err := json.NewDecoder(r.Body).Decode(&forceRemoveRequest); err != nil || len(forceRemoveRequest.Brokers) == 0 {
			Log.Warningf("POST /topology/force-remove: Unable to parse request body: %v", err)

			respondWithError(w, EInvalidRequest)

			return
		}

		topologyEndpoint.change(w, r, "POST /topology/force-remove", ForceRemoveBrokers(forceRemoveRequest.Brokers...))
	}).Methods("POST")

	router.HandleFunc("/topology/operations", func(w http.ResponseWriter, r *http.Request) {
		var operationsBody OperationsBody

		if err := json.NewDecoder(r.Body).Decode(&operationsBody); err != nil {
			Log.Warningf("POST /topology/operations: Unable to parse request body: %v", err)

			respondWithError(w, EInvalidRequest)

			return
		}

		operations := make([]Operation, len(operationsBody.Operations))

		for i, transportOperation := range operationsBody.Operations {
			operations[i] = transportOperation.ToOperation()
		}

		topologyEndpoint.change(w, r, "POST /topology/operations", Operations(operations...))
	}).Methods("POST")

	router.HandleFunc("/topology/changes/{changeID}", func(w http.ResponseWriter, r *http.Request) {
		changeID, ok := parseChangeID(w, r, "GET /topology/changes/{changeID}")

		if !ok {
			return
		}

		report, err := topologyEndpoint.TopologyFacade.ChangeStatus(r.Context(), changeID)

		if err != nil {
			Log.Warningf("GET /topology/changes/{changeID}: %v", err)

			respondWithError(w, err)

			return
		}

		respondWithJSON(w, http.StatusOK, NewChangeStatusResponse(report))
	}).Methods("GET")

	router.HandleFunc("/topology/changes/{changeID}", func(w http.ResponseWriter, r *http.Request) {
		changeID, ok := parseChangeID(w, r, "DELETE /topology/changes/{changeID}")

		if !ok {
			return
		}

		clusterTopology, err := topologyEndpoint.TopologyFacade.CancelChange(r.Context(), changeID)

		if err != nil {
			Log.Warningf("DELETE /topology/changes/{changeID}: %v", err)

			respondWithError(w, err)

			return
		}

		respondWithJSON(w, http.StatusOK, clusterTopology)
	}).Methods("DELETE")

	router.HandleFunc("/topology/changes/{changeID}/retry", func(w http.ResponseWriter, r *http.Request) {
		changeID, ok := parseChangeID(w, r, "POST /topology/changes/{changeID}/retry")

		if !ok {
			return
		}

		if err := topologyEndpoint.TopologyFacade.RetryChange(r.Context(), changeID); err != nil {
			Log.Warningf("POST /topology/changes/{changeID}/retry: %v", err)

			respondWithError(w, err)

			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "\n")
	}).Methods("POST")
}

// change simulates the request when the dryRun query parameter is present
// and commits it otherwise
func (topologyEndpoint *TopologyEndpoint) change(w http.ResponseWriter, r *http.Request, route string, request OperationsRequest) {
	var result ChangeResult
	var err error

	if _, dryRun := r.URL.Query()["dryRun"]; dryRun {
		result, err = topologyEndpoint.TopologyFacade.SimulateOperations(r.Context(), request)
	} else {
		result, err = topologyEndpoint.TopologyFacade.ApplyOperations(r.Context(), request)
	}

	if err != nil {
		Log.Warningf("%s: %v", route, err)

		respondWithError(w, err)

		return
	}

	respondWithJSON(w, http.StatusOK, NewChangeResponse(result))
}

func (topologyEndpoint *TopologyEndpoint) watch(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())

	defer cancel()
	defer conn.Close()

	// Nothing is expected from the client. Reading detects when it goes away.
	go func() {
		defer cancel()

		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for clusterTopology := range topologyEndpoint.TopologyFacade.Watch(ctx) {
		conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))

		if err := conn.WriteJSON(clusterTopology); err != nil {
			Log.Debugf("GET /topology/watch: Stopped streaming topology: %v", err)

			return
		}
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func parseChangeID(w http.ResponseWriter, r *http.Request, route string) (uint64, bool) {
	changeID, err := strconv.ParseUint(mux.Vars(r)["changeID"], 10, 64)

	if err != nil {
		Log.Warningf("%s: Unable to parse change ID as uint64: %v", route, err)

		respondWithError(w, EInvalidRequest)

		return 0, false
	}

	return changeID, true
}

// StatusCode maps an error returned by the topology facade to the status
// code reported to the client
func StatusCode(err error) int {
	switch {
	case errors.Is(err, EInvalidRequest) || errors.Is(err, EReadBody):
		return http.StatusBadRequest
	case IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, EChangeInProgress) || errors.Is(err, ETopologyModified) || errors.Is(err, EChangeNotStuck):
		return http.StatusConflict
	case errors.Is(err, ENoSuchChange):
		return http.StatusNotFound
	case errors.Is(err, ETopologyUninitialized):
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

func respondWithError(w http.ResponseWriter, err error) {
	body := DBerror{Msg: err.Error(), ErrorCode: EStorage.Code()}

	if dbError, ok := AsDBerror(err); ok {
		body.ErrorCode = dbError.Code()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf8")
	w.WriteHeader(StatusCode(err))
	io.WriteString(w, string(body.JSON())+"\n")
}

func respondWithJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	encodedBody, err := json.Marshal(body)

	if err != nil {
		Log.Errorf("Unable to encode response body: %v", err)

		w.Header().Set("Content-Type", "application/json; charset=utf8")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "\n")

		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf8")
	w.WriteHeader(statusCode)
	io.WriteString(w, string(encodedBody)+"\n")
}
