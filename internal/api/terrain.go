package api

// TileSource is one map tile source.
type TileSource struct {
	Type        string   `json:"type"`
	Tiles       []string `json:"tiles,omitempty"`
	URL         string   `json:"url,omitempty"`
	TileSize    int      `json:"tileSize"`
	Attribution string   `json:"attribution,omitempty"`
}

// Marker is a labelled point on the map.
type Marker struct {
	Label  string     `json:"label"`
	Color  string     `json:"color"`
	LngLat [2]float64 `json:"lngLat"`
}

// Terrain is the body of GET /api/terrain.
type Terrain struct {
	Center   [2]float64            `json:"center"`
	Zoom     float64               `json:"zoom"`
	Pitch    float64               `json:"pitch"`
	MaxZoom  float64               `json:"maxZoom"`
	MaxPitch float64               `json:"maxPitch"`
	Sources  map[string]TileSource `json:"sources"`
	Terrain  struct {
		Source       string  `json:"source"`
		Exaggeration float64 `json:"exaggeration"`
	} `json:"terrain"`
	Markers []Marker `json:"markers"`
}

const demTiles = "https://demotiles.maplibre.org/terrain-tiles/tiles.json"

// DefaultTerrain is the monitored slope's map setup.
func DefaultTerrain() Terrain {
	t := Terrain{
		Center:   [2]float64{11.39085, 47.27574},
		Zoom:     12,
		Pitch:    70,
		MaxZoom:  18,
		MaxPitch: 85,
		Sources: map[string]TileSource{
			"satellite": {
				Type:        "raster",
				Tiles:       []string{"https://services.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"},
				TileSize:    256,
				Attribution: "Tiles © Esri",
			},
			"terrainSource":   {Type: "raster-dem", URL: demTiles, TileSize: 256},
			"hillshadeSource": {Type: "raster-dem", URL: demTiles, TileSize: 256},
		},
		Markers: []Marker{
			{Label: "Control Point", Color: "green", LngLat: [2]float64{11.39085, 47.27574}},
			{Label: "Point 1", Color: "red", LngLat: [2]float64{11.35962, 47.26204}},
			{Label: "Point 2", Color: "red", LngLat: [2]float64{11.34083, 47.26925}},
		},
	}
	t.Terrain.Source = "terrainSource"
	t.Terrain.Exaggeration = 1
	return t
}
