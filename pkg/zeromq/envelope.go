package zeromq

import (
	"errors"

	flatbuffers "github.com/google/flatbuffers/go"
	message "github.com/open-rover/simnode/pkg/flatbuffers/rover/message"
)

// EnvelopeVersion is stamped into every outbound BusMessage.
const EnvelopeVersion uint16 = 1

// ErrInvalidEnvelope is returned when an inbound buffer is not a usable
// BusMessage.
var ErrInvalidEnvelope = errors.New("invalid bus message envelope")

// EncodeEnvelope wraps a payload in a BusMessage FlatBuffer.
func EncodeEnvelope(topic string, contentType message.ContentType, timestampNs int64, payload []byte) []byte {
	builder := flatbuffers.NewBuilder(len(payload) + 128)
	topicOffset := builder.CreateString(topic)
	payloadOffset := builder.CreateByteVector(payload)

	message.BusMessageStart(builder)
	message.BusMessageAddTopic(builder, topicOffset)
	message.BusMessageAddTimestampNs(builder, timestampNs)
	message.BusMessageAddContentType(builder, contentType)
	message.BusMessageAddPayload(builder, payloadOffset)
	message.BusMessageAddVersion(builder, EnvelopeVersion)
	busMessageOffset := message.BusMessageEnd(builder)

	builder.Finish(busMessageOffset)
	return builder.FinishedBytes()
}

// DecodeEnvelope parses an inbound buffer as a BusMessage. Buffers
// without a topic are rejected.
func DecodeEnvelope(data []byte) (*message.BusMessage, error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, ErrInvalidEnvelope
	}
	busMsg := message.GetRootAsBusMessage(data, 0)
	if len(busMsg.Topic()) == 0 {
		return nil, ErrInvalidEnvelope
	}
	return busMsg, nil
}
