package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	geofence "github.com/paulstuart/go-geofence"
)

type server struct {
	index *geofence.Index
}

// InitServer builds the query router over an already loaded dataset.
func InitServer(d *geofence.Dataset) *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	s := server{index: geofence.NewIndex(d)}

	api := router.PathPrefix("/geofence").Subrouter()
	api.HandleFunc("/-/healthz", s.healthz).Methods(http.MethodGet)

	apiV1 := router.PathPrefix("/geofence/api/v1").Subrouter()
	apiV1.HandleFunc("/contains/{lng}/{lat}", s.contains).Methods("GET")

	return router
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status string `json:"status"`
	}

	json.NewEncoder(w).Encode(health{Status: "Ok"})
}

func (s *server) contains(w http.ResponseWriter, r *http.Request) {
	lng, err := strconv.ParseFloat(mux.Vars(r)["lng"], 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	lat, err := strconv.ParseFloat(mux.Vars(r)["lat"], 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	type containsResult struct {
		Contains bool `json:"contains"`
	}

	res := containsResult{Contains: s.index.Contains(lng, lat)}

	log.Debugf("Contains (%f,%f) : %t", lng, lat, res.Contains)

	json.NewEncoder(w).Encode(res)
}
