package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/peterbourgon/ff"
	log "github.com/sirupsen/logrus"

	geofence "github.com/paulstuart/go-geofence"
	"github.com/paulstuart/go-geofence/api"
)

func main() {

	fs := flag.NewFlagSet("geofenced", flag.ExitOnError)
	var (
		dataFile = fs.String("data", geofence.DefaultGeoFile, "binary polygon datafile to serve")
		listen   = fs.String("listen", ":8989", "listen address")
		useMmap  = fs.Bool("mmap", false, "memory-map the datafile instead of reading it")
		debug    = fs.Bool("debug", false, "enable debug logging")
	)
	ff.Parse(fs, os.Args[1:], ff.WithEnvVarNoPrefix())

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	open := geofence.Open
	if *useMmap {
		open = geofence.OpenMapped
	}
	d, err := open(*dataFile)
	if err != nil {
		log.Fatalf("can't load %q: %v", *dataFile, err)
	}
	defer d.Close()

	log.Infof("Serving %d polygons from %s on %s", d.NumPolygons(), *dataFile, *listen)

	router := api.InitServer(d)
	log.Fatal(http.ListenAndServe(*listen, handlers.LoggingHandler(os.Stdout, router)))
}
