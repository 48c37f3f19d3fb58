// Package dispatch turns one decoded client request into exactly one server
// response, running it against the column store.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/correlatr/internal/observability"
	"github.com/danmuck/correlatr/internal/protocol"
	"github.com/danmuck/correlatr/internal/render"
	"github.com/danmuck/correlatr/internal/store"
	"github.com/rs/zerolog"
)

const (
	MillisPerDay = int64(24 * time.Hour / time.Millisecond)

	TextConnected     = "Connected"
	TextNoColumnNames = "Bad changeColumn message. No column names set"
	TextNoUpdates     = "No data updates to perform"
	TextSuccess       = "Success"
	TextUnknownError  = "Unknown server error"
	TextMalformed     = "Malformed request"
)

var errUnknownRequest = errors.New("dispatch: unknown request variant")

type Dispatcher struct {
	store    store.ColumnStore
	renderer render.Renderer
	logger   zerolog.Logger
	now      func() time.Time
}

type Option func(*Dispatcher)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func New(s store.ColumnStore, r render.Renderer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    s,
		renderer: r,
		logger:   observability.Component("dispatch"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleFrame decodes one frame payload, dispatches it and encodes the reply.
// Undecodable payloads get a malformed-request status rather than an error;
// the returned error is only set when the reply itself cannot be encoded.
func (d *Dispatcher) HandleFrame(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := protocol.DecodeRequest(payload)
	var resp protocol.Response
	if err != nil {
		d.logger.Warn().Err(err).Int("bytes", len(payload)).Msg("malformed request")
		observability.RecordDispatch("unknown", observability.OutcomeMalformed, 0)
		resp = protocol.Status(TextMalformed, true)
	} else {
		resp = d.Dispatch(ctx, req)
	}
	out, err := protocol.EncodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("dispatch: encode response: %w", err)
	}
	return out, nil
}

// Dispatch always returns a response. Handler errors and panics become the
// generic error status; their detail is logged only.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	start := d.now()
	kind := "unknown"
	if req != nil {
		kind = string(req.Kind())
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("kind", kind).Interface("panic", r).Msg("request handler panicked")
			resp = protocol.Status(TextUnknownError, true)
		}
		observability.RecordDispatch(kind, outcome(resp), d.now().Sub(start))
	}()

	resp, err := d.handle(ctx, req)
	if err != nil {
		d.logger.Error().Err(err).Str("kind", kind).Msg("request failed")
		return protocol.Status(TextUnknownError, true)
	}
	return resp
}

func (d *Dispatcher) handle(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	switch r := req.(type) {
	case protocol.Ping:
		return protocol.Status(TextConnected, false), nil
	case protocol.ChangeColumn:
		return d.changeColumn(ctx, r)
	case protocol.UpdateData:
		return d.updateData(ctx, r)
	case protocol.ColumnsRequest:
		names, err := d.store.ListColumns(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.ColumnNames{Names: names}, nil
	case protocol.DataRequest:
		return d.dataRequest(ctx, r)
	case protocol.GraphRequest:
		return d.graphRequest(ctx, r)
	default:
		return nil, fmt.Errorf("%w: %T", errUnknownRequest, req)
	}
}

func (d *Dispatcher) changeColumn(ctx context.Context, r protocol.ChangeColumn) (protocol.Response, error) {
	var (
		st  store.Status
		err error
	)
	switch {
	case r.OldColumnName == "" && r.NewColumnName == "":
		return protocol.Status(TextNoColumnNames, true), nil
	case r.OldColumnName == "":
		st, err = d.store.AddColumn(ctx, r.NewColumnName)
	case r.NewColumnName == "":
		st, err = d.store.RemoveColumn(ctx, r.OldColumnName)
	default:
		st, err = d.store.RenameColumn(ctx, r.OldColumnName, r.NewColumnName)
	}
	if err != nil {
		return nil, err
	}
	return d.status(protocol.KindChangeColumn, st), nil
}

func (d *Dispatcher) updateData(ctx context.Context, r protocol.UpdateData) (protocol.Response, error) {
	if len(r.NewData) == 0 {
		return protocol.Status(TextNoUpdates, true), nil
	}
	values := make(map[string]sql.NullFloat64, len(r.NewData))
	for _, p := range r.NewData {
		values[p.ColumnName] = sql.NullFloat64{Float64: p.Value, Valid: !p.IsNull}
	}
	st, err := d.store.SetRow(ctx, DayFromMillis(r.DateMillis), values)
	if err != nil {
		return nil, err
	}
	if st.OK() {
		return protocol.Status(TextSuccess, false), nil
	}
	return d.status(protocol.KindUpdateData, st), nil
}

func (d *Dispatcher) dataRequest(ctx context.Context, r protocol.DataRequest) (protocol.Response, error) {
	row, err := d.store.GetRow(ctx, DayFromMillis(r.DateMillis))
	if err != nil {
		return nil, err
	}
	points := make([]protocol.DataPoint, len(row))
	for i, p := range row {
		points[i] = protocol.DataPoint{ColumnName: p.Column, Value: p.Value, IsNull: p.Null}
	}
	return protocol.DataPoints{Points: points}, nil
}

func (d *Dispatcher) graphRequest(ctx context.Context, r protocol.GraphRequest) (protocol.Response, error) {
	pairs, st, err := d.store.PairedSeries(ctx, r.Horizontal, r.Vertical)
	if err != nil {
		return nil, err
	}
	if !st.OK() {
		return d.status(protocol.KindGraphRequest, st), nil
	}
	points := make([]render.XY, len(pairs))
	for i, p := range pairs {
		points[i] = render.XY{X: p.X, Y: p.Y}
	}
	img, err := d.renderer.RenderScatter(ctx, points, r.Horizontal, r.Vertical)
	if err != nil {
		return nil, fmt.Errorf("render %q vs %q: %w", r.Horizontal, r.Vertical, err)
	}
	return protocol.GraphImage{Image: img}, nil
}

func (d *Dispatcher) status(kind protocol.Kind, st store.Status) protocol.StatusMessage {
	d.logger.Info().
		Str("kind", string(kind)).
		Str("code", st.Code.String()).
		Msg(st.Message)
	return protocol.Status(st.Message, !st.OK())
}

// DayFromMillis floors a Unix millisecond timestamp to its UTC day number, so
// instants before the epoch land on the preceding day.
func DayFromMillis(ms int64) int64 {
	day := ms / MillisPerDay
	if ms%MillisPerDay < 0 {
		day--
	}
	return day
}

func outcome(resp protocol.Response) string {
	st, ok := resp.(protocol.StatusMessage)
	switch {
	case !ok:
		return observability.OutcomeOK
	case st.Text == TextUnknownError:
		return observability.OutcomeError
	case st.Error:
		return observability.OutcomeRejected
	default:
		return observability.OutcomeOK
	}
}
