// Package pb declares the Fulfillment gRPC service. Messages travel as JSON
// using the codec registered in codec.go.
package pb

type OpenSessionRequest struct {
	OrderId string `json:"orderId"`
}

func (x *OpenSessionRequest) GetOrderId() string {
	if x != nil {
		return x.OrderId
	}
	return ""
}

type ScanRequest struct {
	SessionId string `json:"sessionId"`
	Code      string `json:"code"`
}

func (x *ScanRequest) GetSessionId() string {
	if x != nil {
		return x.SessionId
	}
	return ""
}

func (x *ScanRequest) GetCode() string {
	if x != nil {
		return x.Code
	}
	return ""
}

type CommitRequest struct {
	SessionId      string `json:"sessionId"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

func (x *CommitRequest) GetSessionId() string {
	if x != nil {
		return x.SessionId
	}
	return ""
}

func (x *CommitRequest) GetTrackingNumber() string {
	if x != nil {
		return x.TrackingNumber
	}
	return ""
}

type CancelRequest struct {
	SessionId string `json:"sessionId"`
}

func (x *CancelRequest) GetSessionId() string {
	if x != nil {
		return x.SessionId
	}
	return ""
}

type CancelResponse struct{}

type ItemProgress struct {
	Key       string   `json:"key"`
	ProductId string   `json:"productId"`
	Variant   string   `json:"variant,omitempty"`
	Needed    int32    `json:"needed"`
	Scanned   int32    `json:"scanned"`
	Serials   []string `json:"serials"`
}

type SessionResponse struct {
	Id        string          `json:"id"`
	OrderId   string          `json:"orderId"`
	Items     []*ItemProgress `json:"items"`
	Complete  bool            `json:"complete"`
	LastError string          `json:"lastError,omitempty"`
}

type CommitResponse struct {
	OrderId     string   `json:"orderId"`
	MovementId  string   `json:"movementId"`
	Serials     []string `json:"serials"`
	LotsUpdated []string `json:"lotsUpdated"`
}
