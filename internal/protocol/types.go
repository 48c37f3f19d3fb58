package protocol

// Kind names a request variant in logs and metrics.
type Kind string

const (
	KindPing           Kind = "ping"
	KindChangeColumn   Kind = "change_column"
	KindUpdateData     Kind = "update_data"
	KindColumnsRequest Kind = "columns_request"
	KindDataRequest    Kind = "data_request"
	KindGraphRequest   Kind = "graph_request"
)

// Request is one ClientMessage variant. The set is closed: only the types in
// this file implement it.
type Request interface {
	Kind() Kind
	isRequest()
}

// Ping checks that the server is reachable.
type Ping struct{}

// ChangeColumn adds (OldColumnName empty), removes (NewColumnName empty) or
// renames a column.
type ChangeColumn struct {
	OldColumnName string
	NewColumnName string
}

// UpdateData writes points into the row for the day containing DateMillis.
type UpdateData struct {
	DateMillis int64
	NewData    []DataPoint
}

// ColumnsRequest lists every user column.
type ColumnsRequest struct{}

// DataRequest reads the row for the day containing DateMillis.
type DataRequest struct {
	DateMillis int64
}

// GraphRequest asks for a scatter plot of two columns.
type GraphRequest struct {
	Horizontal string
	Vertical   string
}

func (Ping) Kind() Kind           { return KindPing }
func (ChangeColumn) Kind() Kind   { return KindChangeColumn }
func (UpdateData) Kind() Kind     { return KindUpdateData }
func (ColumnsRequest) Kind() Kind { return KindColumnsRequest }
func (DataRequest) Kind() Kind    { return KindDataRequest }
func (GraphRequest) Kind() Kind   { return KindGraphRequest }

func (Ping) isRequest()           {}
func (ChangeColumn) isRequest()   {}
func (UpdateData) isRequest()     {}
func (ColumnsRequest) isRequest() {}
func (DataRequest) isRequest()    {}
func (GraphRequest) isRequest()   {}

// DataPoint is one (column, value-or-null) pair. Value is meaningful only when
// IsNull is false.
type DataPoint struct {
	ColumnName string
	Value      float64
	IsNull     bool
}

// Response is one ServerMessage variant.
type Response interface {
	isResponse()
}

type StatusMessage struct {
	Text  string
	Error bool
}

type ColumnNames struct {
	Names []string
}

type DataPoints struct {
	Points []DataPoint
}

type GraphImage struct {
	Image []byte
}

func (StatusMessage) isResponse() {}
func (ColumnNames) isResponse()   {}
func (DataPoints) isResponse()    {}
func (GraphImage) isResponse()    {}

// Status builds a status response.
func Status(text string, isErr bool) StatusMessage {
	return StatusMessage{Text: text, Error: isErr}
}
