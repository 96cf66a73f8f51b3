package darwin

import (
	"encoding/xml"
	"html"
	"strings"
)

// Namespaces of the OpenLDBWS SOAP interface.
const (
	nsSOAP   = "http://www.w3.org/2003/05/soap-envelope"
	nsToken  = "http://thalesgroup.com/RTTI/2013-11-28/Token/types"
	nsLDB    = "http://thalesgroup.com/RTTI/2021-11-01/ldb/"
	actionNS = "http://thalesgroup.com/RTTI/2012-01-13/ldb/"
)

type envelope struct {
	XMLName xml.Name    `xml:"soap:Envelope"`
	SOAP    string      `xml:"xmlns:soap,attr"`
	Typ     string      `xml:"xmlns:typ,attr"`
	LDB     string      `xml:"xmlns:ldb,attr"`
	Token   string      `xml:"soap:Header>typ:AccessToken>typ:TokenValue"`
	Body    requestBody `xml:"soap:Body"`
}

type requestBody struct {
	Board   *boardRequest   `xml:"ldb:GetDepartureBoardRequest,omitempty"`
	Details *detailsRequest `xml:"ldb:GetServiceDetailsRequest,omitempty"`
}

type boardRequest struct {
	NumRows    int    `xml:"ldb:numRows"`
	CRS        string `xml:"ldb:crs"`
	FilterCRS  string `xml:"ldb:filterCrs,omitempty"`
	FilterType string `xml:"ldb:filterType,omitempty"`
}

type detailsRequest struct {
	ServiceID string `xml:"ldb:serviceID"`
}

func newEnvelope(token string, body requestBody) envelope {
	return envelope{SOAP: nsSOAP, Typ: nsToken, LDB: nsLDB, Token: token, Body: body}
}

// Responses are matched on local names only.
type responseEnvelope struct {
	Body struct {
		Fault   *soapFault            `xml:"Fault"`
		Board   *stationBoardResult   `xml:"GetDepartureBoardResponse>GetStationBoardResult"`
		Details *serviceDetailsResult `xml:"GetServiceDetailsResponse>GetServiceDetailsResult"`
	} `xml:"Body"`
}

type soapFault struct {
	Code        string `xml:"Code>Value"`
	Reason      string `xml:"Reason>Text"`
	FaultString string `xml:"faultstring"`
}

func (f *soapFault) message() string {
	if f.Reason != "" {
		return f.Reason
	}
	if f.FaultString != "" {
		return f.FaultString
	}
	return f.Code
}

type stationBoardResult struct {
	GeneratedAt        string        `xml:"generatedAt"`
	LocationName       string        `xml:"locationName"`
	CRS                string        `xml:"crs"`
	FilterLocationName string        `xml:"filterLocationName"`
	Messages           []nrccMessage `xml:"nrccMessages>message"`
	Services           []serviceItem `xml:"trainServices>service"`
}

type nrccMessage struct {
	Inner string `xml:",innerxml"`
}

// text unescapes the message; tags are left for the notice formatter.
func (m nrccMessage) text() string {
	return strings.TrimSpace(html.UnescapeString(m.Inner))
}

type serviceItem struct {
	STD          string     `xml:"std"`
	ETD          string     `xml:"etd"`
	Platform     string     `xml:"platform"`
	Operator     string     `xml:"operator"`
	OperatorCode string     `xml:"operatorCode"`
	ServiceID    string     `xml:"serviceID"`
	Destinations []location `xml:"destination>location"`
}

type location struct {
	Name string `xml:"locationName"`
	Via  string `xml:"via"`
}

func destinationText(locs []location) string {
	names := make([]string, 0, len(locs))
	for _, l := range locs {
		n := l.Name
		if l.Via != "" {
			n += " " + l.Via
		}
		names = append(names, n)
	}
	return strings.Join(names, " & ")
}

type serviceDetailsResult struct {
	LocationName string         `xml:"locationName"`
	DelayReason  string         `xml:"delayReason"`
	CancelReason string         `xml:"cancelReason"`
	Subsequent   []callingPoint `xml:"subsequentCallingPoints>callingPointList>callingPoint"`
}

type callingPoint struct {
	Name string `xml:"locationName"`
	CRS  string `xml:"crs"`
	ST   string `xml:"st"`
	ET   string `xml:"et"`
	AT   string `xml:"at"`
}
