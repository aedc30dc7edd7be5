package adapters

import (
	"fmt"
	"net/http"

	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

// BidderErrorCode classifies adapter errors
type BidderErrorCode string

const (
	ErrorCodeMarshal    BidderErrorCode = "MARSHAL_ERROR"
	ErrorCodeBadInput   BidderErrorCode = "BAD_INPUT"
	ErrorCodeBadRequest BidderErrorCode = "BAD_REQUEST"
	ErrorCodeBadStatus  BidderErrorCode = "BAD_STATUS"
	ErrorCodeParse      BidderErrorCode = "PARSE_ERROR"
)

// BidderError represents a standardized adapter error
type BidderError struct {
	BidderCode string
	Code       BidderErrorCode
	Message    string
	Cause      error
}

func (e *BidderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Code, e.BidderCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.BidderCode, e.Message)
}

func (e *BidderError) Unwrap() error {
	return e.Cause
}

// NewMarshalError creates a standardized marshal error
func NewMarshalError(bidderCode string, cause error) *BidderError {
	return &BidderError{
		BidderCode: bidderCode,
		Code:       ErrorCodeMarshal,
		Message:    "failed to marshal request",
		Cause:      cause,
	}
}

// NewBadInputError reports a request the adapter cannot forward
func NewBadInputError(bidderCode string, message string) *BidderError {
	return &BidderError{
		BidderCode: bidderCode,
		Code:       ErrorCodeBadInput,
		Message:    message,
	}
}

// NewBadRequestError creates a standardized bad request error
func NewBadRequestError(bidderCode string, responseBody string) *BidderError {
	return &BidderError{
		BidderCode: bidderCode,
		Code:       ErrorCodeBadRequest,
		Message:    fmt.Sprintf("bad request: %s", responseBody),
	}
}

// NewBadStatusError creates a standardized status code error
func NewBadStatusError(bidderCode string, statusCode int) *BidderError {
	return &BidderError{
		BidderCode: bidderCode,
		Code:       ErrorCodeBadStatus,
		Message:    fmt.Sprintf("unexpected status: %d", statusCode),
	}
}

// NewParseError creates a standardized parse error
func NewParseError(bidderCode string, cause error) *BidderError {
	return &BidderError{
		BidderCode: bidderCode,
		Code:       ErrorCodeParse,
		Message:    "failed to parse response",
		Cause:      cause,
	}
}

// IsResponseStatusCodeNoContent reports a 204 response
func IsResponseStatusCodeNoContent(response *ResponseData) bool {
	return response.StatusCode == http.StatusNoContent
}

// CheckResponseStatusCodeForErrors returns a BidderError for any non-200 status
func CheckResponseStatusCodeForErrors(bidderCode string, response *ResponseData) error {
	switch {
	case response.StatusCode == http.StatusBadRequest:
		return NewBadRequestError(bidderCode, string(response.Body))
	case response.StatusCode != http.StatusOK:
		return NewBadStatusError(bidderCode, response.StatusCode)
	}
	return nil
}

// BuildImpMap creates a map of impression ID to impression for O(1) lookups
func BuildImpMap(imps []openrtb.Imp) map[string]*openrtb.Imp {
	impMap := make(map[string]*openrtb.Imp, len(imps))
	for i := range imps {
		impMap[imps[i].ID] = &imps[i]
	}
	return impMap
}

// GetBidTypeFromMap determines bid type from the bid's mtype, falling back to
// the media objects of its impression. Video wins on multi-format imps.
func GetBidTypeFromMap(bid *openrtb.Bid, impMap map[string]*openrtb.Imp) BidType {
	switch bid.MType {
	case openrtb.MarkupBanner:
		return BidTypeBanner
	case openrtb.MarkupVideo:
		return BidTypeVideo
	case openrtb.MarkupAudio:
		return BidTypeAudio
	case openrtb.MarkupNative:
		return BidTypeNative
	}

	imp, ok := impMap[bid.ImpID]
	if !ok {
		return BidTypeBanner
	}

	switch {
	case imp.Video != nil:
		if imp.Banner != nil || imp.Native != nil || imp.Audio != nil {
			logger.Log.Debug().
				Str("bid_id", bid.ID).
				Str("imp_id", imp.ID).
				Msg("bid has no mtype on a multi-format imp, treating it as video")
		}
		return BidTypeVideo
	case imp.Banner != nil:
		return BidTypeBanner
	case imp.Native != nil:
		return BidTypeNative
	case imp.Audio != nil:
		return BidTypeAudio
	}
	return BidTypeBanner
}
