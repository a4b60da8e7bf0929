package lib

import (
	"context"
	"tbs/src/config"

	"googlemaps.github.io/maps"
)

var mapsClient *maps.Client

func GetMapsClient() (*maps.Client, error) {
	if mapsClient != nil {
		return mapsClient, nil
	}
	cli, err := maps.NewClient(maps.WithAPIKey(config.GAPI_API_KEY))
	if err != nil {
		return nil, err
	}
	mapsClient = cli
	return cli, nil
}

// GeocodeLocation resolves a free-text location to its first geocoding hit.
func GeocodeLocation(ctx context.Context, location string) (*maps.GeocodingResult, error) {
	cli, err := GetMapsClient()
	if err != nil {
		return nil, err
	}
	results, err := cli.Geocode(ctx, &maps.GeocodingRequest{Address: location})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}
