// Package openrtb provides OpenRTB 2.5/2.6 data models
package openrtb

import "encoding/json"

// BidRequest represents an OpenRTB 2.5/2.6 bid request
type BidRequest struct {
	ID     string          `json:"id"`
	Imp    []Imp           `json:"imp"`
	Site   *Site           `json:"site,omitempty"`
	App    *App            `json:"app,omitempty"`
	Device *Device         `json:"device,omitempty"`
	User   *User           `json:"user,omitempty"`
	Test   int             `json:"test,omitempty"`
	AT     int             `json:"at,omitempty"`
	TMax   int             `json:"tmax,omitempty"`
	Cur    []string        `json:"cur,omitempty"`
	BCat   []string        `json:"bcat,omitempty"`
	BAdv   []string        `json:"badv,omitempty"`
	Source *Source         `json:"source,omitempty"`
	Regs   *Regs           `json:"regs,omitempty"`
	Ext    json.RawMessage `json:"ext,omitempty"`
}

// Imp represents an impression object. In the host model one imp is one ad
// slot bid request: ID is the bid id and TagID the ad-unit code.
type Imp struct {
	ID                string          `json:"id"`
	Banner            *Banner         `json:"banner,omitempty"`
	Video             *Video          `json:"video,omitempty"`
	Audio             *Audio          `json:"audio,omitempty"`
	Native            *Native         `json:"native,omitempty"`
	PMP               *PMP            `json:"pmp,omitempty"`
	DisplayManager    string          `json:"displaymanager,omitempty"`
	DisplayManagerVer string          `json:"displaymanagerver,omitempty"`
	Instl             int             `json:"instl,omitempty"`
	TagID             string          `json:"tagid,omitempty"`
	BidFloor          float64         `json:"bidfloor,omitempty"`
	BidFloorCur       string          `json:"bidfloorcur,omitempty"`
	Secure            *int            `json:"secure,omitempty"`
	Exp               int             `json:"exp,omitempty"`
	Ext               json.RawMessage `json:"ext,omitempty"`
}

// Banner represents a banner impression
type Banner struct {
	Format []Format        `json:"format,omitempty"`
	W      int             `json:"w,omitempty"`
	H      int             `json:"h,omitempty"`
	Pos    int             `json:"pos,omitempty"`
	BAttr  []int           `json:"battr,omitempty"`
	API    []int           `json:"api,omitempty"`
	Ext    json.RawMessage `json:"ext,omitempty"`
}

// Format represents an allowed banner size
type Format struct {
	W int `json:"w,omitempty"`
	H int `json:"h,omitempty"`
}

// Video represents a video impression. Plcmt 4 is accompanying content,
// the OpenRTB 2.6 signal for outstream.
type Video struct {
	Mimes          []string        `json:"mimes,omitempty"`
	MinDuration    int             `json:"minduration,omitempty"`
	MaxDuration    int             `json:"maxduration,omitempty"`
	Protocols      []int           `json:"protocols,omitempty"`
	W              int             `json:"w,omitempty"`
	H              int             `json:"h,omitempty"`
	StartDelay     *int            `json:"startdelay,omitempty"`
	Placement      int             `json:"placement,omitempty"`
	Plcmt          int             `json:"plcmt,omitempty"`
	Linearity      int             `json:"linearity,omitempty"`
	Skip           *int            `json:"skip,omitempty"`
	PlaybackMethod []int           `json:"playbackmethod,omitempty"`
	API            []int           `json:"api,omitempty"`
	Ext            json.RawMessage `json:"ext,omitempty"`
}

// Audio represents an audio impression
type Audio struct {
	Mimes       []string        `json:"mimes,omitempty"`
	MinDuration int             `json:"minduration,omitempty"`
	MaxDuration int             `json:"maxduration,omitempty"`
	Ext         json.RawMessage `json:"ext,omitempty"`
}

// Native represents a native impression
type Native struct {
	Request string          `json:"request,omitempty"`
	Ver     string          `json:"ver,omitempty"`
	Ext     json.RawMessage `json:"ext,omitempty"`
}

// PMP represents a private marketplace
type PMP struct {
	PrivateAuction int    `json:"private_auction,omitempty"`
	Deals          []Deal `json:"deals,omitempty"`
}

// Deal represents a deal object
type Deal struct {
	ID          string   `json:"id"`
	BidFloor    float64  `json:"bidfloor,omitempty"`
	BidFloorCur string   `json:"bidfloorcur,omitempty"`
	WSeat       []string `json:"wseat,omitempty"`
}

// Site represents a website
type Site struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Domain    string          `json:"domain,omitempty"`
	Cat       []string        `json:"cat,omitempty"`
	Page      string          `json:"page,omitempty"`
	Ref       string          `json:"ref,omitempty"`
	Mobile    int             `json:"mobile,omitempty"`
	Publisher *Publisher      `json:"publisher,omitempty"`
	Keywords  string          `json:"keywords,omitempty"`
	Ext       json.RawMessage `json:"ext,omitempty"`
}

// App represents a mobile application
type App struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Bundle    string          `json:"bundle,omitempty"`
	Domain    string          `json:"domain,omitempty"`
	StoreURL  string          `json:"storeurl,omitempty"`
	Ver       string          `json:"ver,omitempty"`
	Publisher *Publisher      `json:"publisher,omitempty"`
	Ext       json.RawMessage `json:"ext,omitempty"`
}

// Publisher represents a publisher
type Publisher struct {
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Domain string          `json:"domain,omitempty"`
	Ext    json.RawMessage `json:"ext,omitempty"`
}

// Device represents a user device
type Device struct {
	UA         string          `json:"ua,omitempty"`
	Geo        *Geo            `json:"geo,omitempty"`
	DNT        *int            `json:"dnt,omitempty"`
	Lmt        *int            `json:"lmt,omitempty"`
	IP         string          `json:"ip,omitempty"`
	IPv6       string          `json:"ipv6,omitempty"`
	DeviceType int             `json:"devicetype,omitempty"`
	OS         string          `json:"os,omitempty"`
	H          int             `json:"h,omitempty"`
	W          int             `json:"w,omitempty"`
	Language   string          `json:"language,omitempty"`
	IFA        string          `json:"ifa,omitempty"`
	Ext        json.RawMessage `json:"ext,omitempty"`
}

// Geo represents geographic location
type Geo struct {
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
	Country string  `json:"country,omitempty"`
	Region  string  `json:"region,omitempty"`
	City    string  `json:"city,omitempty"`
	ZIP     string  `json:"zip,omitempty"`
}

// User represents a user
type User struct {
	ID       string          `json:"id,omitempty"`
	BuyerUID string          `json:"buyeruid,omitempty"`
	Consent  string          `json:"consent,omitempty"`
	EIDs     []EID           `json:"eids,omitempty"`
	Ext      json.RawMessage `json:"ext,omitempty"`
}

// EID represents an extended identifier
type EID struct {
	Source string `json:"source,omitempty"`
	UIDs   []UID  `json:"uids,omitempty"`
}

// UID represents a user ID
type UID struct {
	ID    string `json:"id,omitempty"`
	AType int    `json:"atype,omitempty"`
}

// Source represents request source
type Source struct {
	FD  int             `json:"fd,omitempty"`
	TID string          `json:"tid,omitempty"`
	Ext json.RawMessage `json:"ext,omitempty"`
}

// Regs represents regulations
type Regs struct {
	COPPA     int             `json:"coppa,omitempty"`
	GDPR      *int            `json:"gdpr,omitempty"`
	USPrivacy string          `json:"us_privacy,omitempty"`
	GPP       string          `json:"gpp,omitempty"`
	GPPSID    []int           `json:"gpp_sid,omitempty"`
	Ext       json.RawMessage `json:"ext,omitempty"`
}
