package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// DecodeRequest parses a ClientMessage with standard protobuf merge rules: a
// repeated variant merges into the earlier one, a different variant replaces
// it, and unknown fields (including known numbers with the wrong wire type)
// are skipped. A message with no variant (including an empty payload) is
// ErrNoVariant.
func DecodeRequest(b []byte) (Request, error) {
	m := dynamicpb.NewMessage(clientMessageDesc)
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	fd := variantOf(m)
	if fd == nil {
		return nil, ErrNoVariant
	}
	v := m.Get(fd).Message()
	switch fd.Number() {
	case clientPing:
		return Ping{}, nil
	case clientChangeColumn:
		return ChangeColumn{
			OldColumnName: getString(v, changeOldColumnName),
			NewColumnName: getString(v, changeNewColumnName),
		}, nil
	case clientUpdateData:
		return UpdateData{
			DateMillis: v.Get(field(v, updateDate)).Int(),
			NewData:    getPoints(v, updateNewData),
		}, nil
	case clientColumnsRequest:
		return ColumnsRequest{}, nil
	case clientDataRequest:
		return DataRequest{DateMillis: v.Get(field(v, dataRequestDate)).Int()}, nil
	case clientGraphRequest:
		return GraphRequest{
			Horizontal: getString(v, graphHorizontal),
			Vertical:   getString(v, graphVertical),
		}, nil
	}
	return nil, fmt.Errorf("%w: field %s", ErrUnknownVariant, fd.Name())
}

// DecodeResponse parses a ServerMessage.
func DecodeResponse(b []byte) (Response, error) {
	m := dynamicpb.NewMessage(serverMessageDesc)
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	fd := variantOf(m)
	if fd == nil {
		return nil, ErrNoVariant
	}
	switch fd.Number() {
	case serverStatusMessage:
		v := m.Get(fd).Message()
		return StatusMessage{
			Text:  getString(v, statusText),
			Error: v.Get(field(v, statusError)).Bool(),
		}, nil
	case serverColumnNames:
		v := m.Get(fd).Message()
		list := v.Get(field(v, columnNamesNames)).List()
		var names []string
		for i := 0; i < list.Len(); i++ {
			names = append(names, list.Get(i).String())
		}
		return ColumnNames{Names: names}, nil
	case serverDataPoints:
		return DataPoints{Points: getPoints(m.Get(fd).Message(), dataPointsPoints)}, nil
	case serverGraphImage:
		var img []byte
		if raw := m.Get(fd).Bytes(); len(raw) > 0 {
			img = append(img, raw...)
		}
		return GraphImage{Image: img}, nil
	}
	return nil, fmt.Errorf("%w: field %s", ErrUnknownVariant, fd.Name())
}

func getString(m protoreflect.Message, num protowire.Number) string {
	return m.Get(field(m, num)).String()
}

func getPoints(m protoreflect.Message, num protowire.Number) []DataPoint {
	list := m.Get(field(m, num)).List()
	var points []DataPoint
	for i := 0; i < list.Len(); i++ {
		pm := list.Get(i).Message()
		points = append(points, DataPoint{
			ColumnName: getString(pm, pointColumnName),
			Value:      pm.Get(field(pm, pointValue)).Float(),
			IsNull:     pm.Get(field(pm, pointIsNull)).Bool(),
		})
	}
	return points
}
