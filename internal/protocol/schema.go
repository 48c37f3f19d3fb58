package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Field numbers, mirrored in proto/correlatr.proto.
const (
	clientPing           protowire.Number = 1
	clientChangeColumn   protowire.Number = 2
	clientUpdateData     protowire.Number = 3
	clientColumnsRequest protowire.Number = 4
	clientDataRequest    protowire.Number = 5
	clientGraphRequest   protowire.Number = 6

	changeOldColumnName protowire.Number = 1
	changeNewColumnName protowire.Number = 2

	updateDate    protowire.Number = 1
	updateNewData protowire.Number = 2

	pointColumnName protowire.Number = 1
	pointValue      protowire.Number = 2
	pointIsNull     protowire.Number = 3

	dataRequestDate protowire.Number = 1

	graphHorizontal protowire.Number = 1
	graphVertical   protowire.Number = 2

	serverStatusMessage protowire.Number = 1
	serverColumnNames   protowire.Number = 2
	serverDataPoints    protowire.Number = 3
	serverGraphImage    protowire.Number = 4

	statusText  protowire.Number = 1
	statusError protowire.Number = 2

	columnNamesNames protowire.Number = 1

	dataPointsPoints protowire.Number = 1
)

const (
	schemaPackage = "correlatr"
	variantOneof  = "message"
)

type fieldType = descriptorpb.FieldDescriptorProto_Type

const (
	typeString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeBytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	typeBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	typeInt64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	typeDouble  = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	typeMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

func scalarField(name string, num protowire.Number, typ fieldType) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(int32(num)),
		Type:   typ.Enum(),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
}

func messageField(name string, num protowire.Number, msg string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, num, typeMessage)
	f.TypeName = proto.String("." + schemaPackage + "." + msg)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

// envelope puts every field in the single "message" oneof.
func envelope(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	for _, f := range fields {
		f.OneofIndex = proto.Int32(0)
	}
	m := message(name, fields...)
	m.OneofDecl = []*descriptorpb.OneofDescriptorProto{{Name: proto.String(variantOneof)}}
	return m
}

func schemaProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("correlatr.proto"),
		Package: proto.String(schemaPackage),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			envelope("ClientMessage",
				messageField("ping", clientPing, "Ping"),
				messageField("changeColumn", clientChangeColumn, "ChangeColumnMessage"),
				messageField("updateData", clientUpdateData, "UpdateDataMessage"),
				messageField("columnsRequest", clientColumnsRequest, "ColumnsRequest"),
				messageField("dataRequest", clientDataRequest, "DataRequest"),
				messageField("graphRequest", clientGraphRequest, "GraphRequest"),
			),
			message("Ping"),
			message("ChangeColumnMessage",
				scalarField("oldColumnName", changeOldColumnName, typeString),
				scalarField("newColumnName", changeNewColumnName, typeString),
			),
			message("UpdateDataMessage",
				scalarField("date", updateDate, typeInt64),
				repeated(messageField("newData", updateNewData, "DataPoint")),
			),
			message("DataPoint",
				scalarField("columnName", pointColumnName, typeString),
				scalarField("value", pointValue, typeDouble),
				scalarField("isNull", pointIsNull, typeBool),
			),
			message("ColumnsRequest"),
			message("DataRequest",
				scalarField("date", dataRequestDate, typeInt64),
			),
			message("GraphRequest",
				scalarField("horizontal", graphHorizontal, typeString),
				scalarField("vertical", graphVertical, typeString),
			),
			envelope("ServerMessage",
				messageField("statusMessage", serverStatusMessage, "StatusMessage"),
				messageField("columnNames", serverColumnNames, "ColumnNames"),
				messageField("dataPoints", serverDataPoints, "DataPoints"),
				scalarField("graphImage", serverGraphImage, typeBytes),
			),
			message("StatusMessage",
				scalarField("text", statusText, typeString),
				scalarField("error", statusError, typeBool),
			),
			message("ColumnNames",
				repeated(scalarField("names", columnNamesNames, typeString)),
			),
			message("DataPoints",
				repeated(messageField("points", dataPointsPoints, "DataPoint")),
			),
		},
	}
}

var schema = func() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(schemaProto(), nil)
	if err != nil {
		panic(fmt.Sprintf("protocol: build schema: %v", err))
	}
	return fd
}()

var (
	clientMessageDesc = schema.Messages().ByName("ClientMessage")
	serverMessageDesc = schema.Messages().ByName("ServerMessage")
)

// field looks up a field of m by number; numbers come from the constants above.
func field(m protoreflect.Message, num protowire.Number) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByNumber(num)
	if fd == nil {
		panic(fmt.Sprintf("protocol: %s has no field %d", m.Descriptor().FullName(), num))
	}
	return fd
}

func variantOf(m protoreflect.Message) protoreflect.FieldDescriptor {
	return m.WhichOneof(m.Descriptor().Oneofs().ByName(variantOneof))
}
