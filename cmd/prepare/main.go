package main

import (
	"flag"
	"log"

	geofence "github.com/paulstuart/go-geofence"
)

var (
	jsonFile = geofence.DefaultJSONFile
	geoFile  = geofence.DefaultGeoFile
)

func main() {
	flag.StringVar(&jsonFile, "json", jsonFile, "json data comprising the polygon set")
	flag.StringVar(&geoFile, "geo", geoFile, "binary datafile to write")
	flag.Parse()

	err := geofence.ProcessJSONData(jsonFile, geoFile)
	if err != nil {
		log.Fatalf("can't process %q: %v", jsonFile, err)
	}
}
