package places

// Response statuses returned in the body of every Places web service call.
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusOverQueryLimit = "OVER_QUERY_LIMIT"
	StatusRequestDenied  = "REQUEST_DENIED"
	StatusInvalidRequest = "INVALID_REQUEST"
	StatusNotFound       = "NOT_FOUND"
	StatusUnknownError   = "UNKNOWN_ERROR"
)

// Endpoint names, also used as metric labels.
const (
	EndpointNearby  = "nearbysearch"
	EndpointText    = "textsearch"
	EndpointDetails = "details"
)

// DetailFields is the field set requested for every place.
var DetailFields = []string{
	"name",
	"formatted_address",
	"geometry",
	"rating",
	"user_ratings_total",
	"website",
	"formatted_phone_number",
	"opening_hours",
}

// SearchResponse is one page of a nearby or text search.
type SearchResponse struct {
	HTMLAttributions []string      `json:"html_attributions"`
	NextPageToken    string        `json:"next_page_token"`
	Results          []PlaceResult `json:"results"`
	Status           string        `json:"status"`
	ErrorMessage     string        `json:"error_message,omitempty"`
}

// PlaceResult is a search hit. The search endpoints omit most detail fields.
type PlaceResult struct {
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	Geometry         *Geometry `json:"geometry,omitempty"`
	Rating           *float64  `json:"rating,omitempty"`
	UserRatingsTotal *int      `json:"user_ratings_total,omitempty"`
	Types            []string  `json:"types,omitempty"`
	Vicinity         string    `json:"vicinity,omitempty"`
}

type Geometry struct {
	Location *LatLng `json:"location,omitempty"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type OpeningHours struct {
	OpenNow *bool `json:"open_now,omitempty"`
}

// PlaceDetails is the result object of a details call. Any field may be absent.
type PlaceDetails struct {
	Name                 string        `json:"name,omitempty"`
	FormattedAddress     string        `json:"formatted_address,omitempty"`
	Geometry             *Geometry     `json:"geometry,omitempty"`
	Rating               *float64      `json:"rating,omitempty"`
	UserRatingsTotal     *int          `json:"user_ratings_total,omitempty"`
	Website              string        `json:"website,omitempty"`
	FormattedPhoneNumber string        `json:"formatted_phone_number,omitempty"`
	OpeningHours         *OpeningHours `json:"opening_hours,omitempty"`
}

type detailsResponse struct {
	HTMLAttributions []string     `json:"html_attributions"`
	Result           PlaceDetails `json:"result"`
	Status           string       `json:"status"`
	ErrorMessage     string       `json:"error_message,omitempty"`
}

// NearbyRequest describes a radius-bounded keyword search.
type NearbyRequest struct {
	Lat       float64
	Lng       float64
	Radius    int
	Keyword   string
	Type      string
	PageToken string
}

// TextRequest describes a free-text search.
type TextRequest struct {
	Query     string
	Type      string
	PageToken string
}
