package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

var marshalOptions = proto.MarshalOptions{Deterministic: true}

// EncodeRequest serializes req as a ClientMessage.
func EncodeRequest(req Request) ([]byte, error) {
	m := dynamicpb.NewMessage(clientMessageDesc)
	switch r := req.(type) {
	case Ping:
		variant(m, clientPing)
	case ChangeColumn:
		v := variant(m, clientChangeColumn)
		setString(v, changeOldColumnName, r.OldColumnName)
		setString(v, changeNewColumnName, r.NewColumnName)
	case UpdateData:
		v := variant(m, clientUpdateData)
		v.Set(field(v, updateDate), protoreflect.ValueOfInt64(r.DateMillis))
		appendPoints(v, updateNewData, r.NewData)
	case ColumnsRequest:
		variant(m, clientColumnsRequest)
	case DataRequest:
		v := variant(m, clientDataRequest)
		v.Set(field(v, dataRequestDate), protoreflect.ValueOfInt64(r.DateMillis))
	case GraphRequest:
		v := variant(m, clientGraphRequest)
		setString(v, graphHorizontal, r.Horizontal)
		setString(v, graphVertical, r.Vertical)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownVariant, req)
	}
	b, err := marshalOptions.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", req.Kind(), err)
	}
	return b, nil
}

// EncodeResponse serializes resp as a ServerMessage.
func EncodeResponse(resp Response) ([]byte, error) {
	m := dynamicpb.NewMessage(serverMessageDesc)
	switch r := resp.(type) {
	case StatusMessage:
		v := variant(m, serverStatusMessage)
		setString(v, statusText, r.Text)
		v.Set(field(v, statusError), protoreflect.ValueOfBool(r.Error))
	case ColumnNames:
		v := variant(m, serverColumnNames)
		if len(r.Names) > 0 {
			list := v.Mutable(field(v, columnNamesNames)).List()
			for _, name := range r.Names {
				list.Append(protoreflect.ValueOfString(name))
			}
		}
	case DataPoints:
		v := variant(m, serverDataPoints)
		appendPoints(v, dataPointsPoints, r.Points)
	case GraphImage:
		img := r.Image
		if img == nil {
			img = []byte{}
		}
		m.Set(field(m, serverGraphImage), protoreflect.ValueOfBytes(img))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownVariant, resp)
	}
	b, err := marshalOptions.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %T: %w", resp, err)
	}
	return b, nil
}

// variant selects the message-typed oneof member num of m and returns it.
// Selecting a member marks it present even when it has no fields.
func variant(m protoreflect.Message, num protowire.Number) protoreflect.Message {
	return m.Mutable(field(m, num)).Message()
}

func setString(m protoreflect.Message, num protowire.Number, s string) {
	m.Set(field(m, num), protoreflect.ValueOfString(s))
}

func appendPoints(m protoreflect.Message, num protowire.Number, points []DataPoint) {
	if len(points) == 0 {
		return
	}
	list := m.Mutable(field(m, num)).List()
	for _, p := range points {
		pm := list.NewElement().Message()
		setString(pm, pointColumnName, p.ColumnName)
		pm.Set(field(pm, pointValue), protoreflect.ValueOfFloat64(p.Value))
		pm.Set(field(pm, pointIsNull), protoreflect.ValueOfBool(p.IsNull))
		list.Append(protoreflect.ValueOfMessage(pm))
	}
}
