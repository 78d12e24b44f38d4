package service

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/evergraph/evergraph/src/common"
	"github.com/evergraph/evergraph/src/graph"
	"github.com/evergraph/evergraph/src/node"
	"github.com/evergraph/evergraph/src/peers"
	"github.com/sirupsen/logrus"
)

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers. This is useful when Evergraph is used
// in-memory and expected to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Evergraph API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/event/", s.makeHandler(s.GetEvent))
	http.HandleFunc("/tips", s.makeHandler(s.GetTips))
	http.HandleFunc("/frontier", s.makeHandler(s.GetFrontier))
	http.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	http.HandleFunc("/submit", s.makeHandler(s.Submit))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when Evergraph is used in-memory and another server has already
// been started with the DefaultServerMux and the same address:port
// combination. Indeed, Evergraph API handlers have already been registered
// when the service was instantiated.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Evergraph API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// eventResource is the JSON form of an event, extended with its derived id
// and layer.
type eventResource struct {
	ID        string   `json:"id"`
	Layer     int      `json:"layer"`
	Timestamp int64    `json:"timestamp"`
	Content   []byte   `json:"content"`
	Parents   []string `json:"parents"`
}

func newEventResource(event *graph.Event) eventResource {
	return eventResource{
		ID:        event.Hex(),
		Layer:     event.Layer(),
		Timestamp: event.Timestamp,
		Content:   event.Content,
		Parents:   event.Parents,
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetEvent ...
func (s *Service) GetEvent(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/event/"):]

	if _, err := common.DecodeFromString(param); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := s.node.GetEvent(param)

	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving event %s", param)

		http.Error(w, err.Error(), http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(newEventResource(event))
}

// GetTips ...
func (s *Service) GetTips(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.Tips())
}

// GetFrontier ...
func (s *Service) GetFrontier(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.Frontier())
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	returnPeerSet(w, r, s.node.GetPeers())
}

// Submit reads raw content from the request body and hands it to the node for
// wrapping and gossip. It fails while the node is still syncing.
func (s *Service) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	content, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.node.Submit(content); err != nil {
		s.logger.WithError(err).Error("Submitting content")

		http.Error(w, err.Error(), http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func returnPeerSet(w http.ResponseWriter, r *http.Request, peers []*peers.Peer) {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)

	encoder.Encode(peers)
}
