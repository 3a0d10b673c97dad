// Package ros reads transform trees recorded in ROS bags.
package ros

import (
	"encoding/json"
	"io"
	"os"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/tfbuffer/fixtures"
)

// Topics carrying transforms, and the keys gobag files their JSON under.
const (
	TFTopic       = "/tf"
	TFStaticTopic = "/tf_static"

	tfKey       = "tf"
	tfStaticKey = "tf_static"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (rb *rosbag.RosBag, err error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	rb = rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}
	return rb, nil
}

func topicFilter(topics ...string) func(string) bool {
	topicsFilterMap := make(map[string]bool, len(topics))
	for _, topic := range topics {
		topicsFilterMap[topic] = true
	}
	return func(topic string) bool {
		return topicsFilterMap[topic]
	}
}

// TransformsFromBag returns every transform on /tf_static and /tf in the order the bag recorded
// their messages.
func TransformsFromBag(rb *rosbag.RosBag) ([]fixtures.TransformRecord, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		topicFilter(TFTopic, TFStaticTopic),
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	staticMsgs, hasStatic := rb.TopicsAsJSON[tfStaticKey]
	msgs, hasDynamic := rb.TopicsAsJSON[tfKey]
	if !hasStatic && !hasDynamic {
		return nil, errors.Errorf("no messages for topics %s or %s", TFTopic, TFStaticTopic)
	}

	var (
		static, dynamic []bagRecord
		err             error
	)
	if hasStatic {
		if static, err = decodeBagRecords(staticMsgs, true); err != nil {
			return nil, errors.Wrap(err, TFStaticTopic)
		}
	}
	if hasDynamic {
		if dynamic, err = decodeBagRecords(msgs, false); err != nil {
			return nil, errors.Wrap(err, TFTopic)
		}
	}
	return mergeInBagOrder(static, dynamic), nil
}

// lineReader is satisfied by gobag's topic buffers as well as bytes.Buffer and bufio.Reader.
type lineReader interface {
	ReadBytes(delim byte) ([]byte, error)
}

// bagRecord is a transform together with the time its message was recorded in the bag.
type bagRecord struct {
	received int64
	record   fixtures.TransformRecord
}

// DecodeTFMessages decodes newline separated TFMessage JSON into fixture records.
func DecodeTFMessages(msgs lineReader, isStatic bool) ([]fixtures.TransformRecord, error) {
	decoded, err := decodeBagRecords(msgs, isStatic)
	if err != nil {
		return nil, err
	}
	return lo.Map(decoded, func(rec bagRecord, _ int) fixtures.TransformRecord { return rec.record }), nil
}

func decodeBagRecords(msgs lineReader, isStatic bool) ([]bagRecord, error) {
	var records []bagRecord
	for line := 0; ; line++ {
		data, err := msgs.ReadBytes('\n')
		if len(data) > 0 && !(len(data) == 1 && data[0] == '\n') {
			var msg TFMessage
			if jsonErr := json.Unmarshal(data, &msg); jsonErr != nil {
				return nil, errors.Wrapf(jsonErr, "message %d", line)
			}
			for _, tf := range msg.Data.Transforms {
				records = append(records, bagRecord{received: msg.Meta.Nanoseconds(), record: recordFromMessage(tf, isStatic)})
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return nil, err
		}
	}
}

// mergeInBagOrder interleaves the two topics by recording time. Each topic keeps its own
// order and static messages go first on ties.
func mergeInBagOrder(static, dynamic []bagRecord) []fixtures.TransformRecord {
	records := make([]fixtures.TransformRecord, 0, len(static)+len(dynamic))
	for len(static) > 0 || len(dynamic) > 0 {
		if len(dynamic) == 0 || (len(static) > 0 && static[0].received <= dynamic[0].received) {
			records = append(records, static[0].record)
			static = static[1:]
			continue
		}
		records = append(records, dynamic[0].record)
		dynamic = dynamic[1:]
	}
	return records
}

func recordFromMessage(msg TransformStampedMessage, isStatic bool) fixtures.TransformRecord {
	t, r := msg.Transform.Translation, msg.Transform.Rotation
	return fixtures.TransformRecord{
		ChildFrameID: msg.ChildFrameID,
		FrameID:      msg.Header.FrameID,
		IsStatic:     isStatic,
		Rotation:     [4]float64{r.X, r.Y, r.Z, r.W},
		Timestamp:    msg.Header.Stamp.Nanoseconds(),
		Translation:  [3]float64{t.X, t.Y, t.Z},
	}
}
