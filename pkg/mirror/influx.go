package mirror

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes one battery point and one point per network for each
// document, so signal strength can be charted per bike and SSID.
type Influx struct {
	client influxdb2.Client
	w      pointWriter
}

func NewInflux(url, token, org, bucket string) *Influx {
	client := influxdb2.NewClient(url, token)
	return &Influx{client: client, w: client.WriteAPIBlocking(org, bucket)}
}

func (i *Influx) Publish(ctx context.Context, msg Message) error {
	return i.w.WritePoint(ctx, Points(msg)...)
}

func (i *Influx) Close() {
	if i != nil && i.client != nil {
		i.client.Close()
	}
}

// Points converts msg to line-protocol points.
func Points(msg Message) []*write.Point {
	points := make([]*write.Point, 0, len(msg.Networks)+1)
	points = append(points, write.NewPoint("bike_battery",
		map[string]string{"bike": msg.Bike, "kind": msg.Kind},
		map[string]interface{}{"percent": msg.Battery, "timestamp": msg.Timestamp},
		msg.Time))
	for _, n := range msg.Networks {
		points = append(points, write.NewPoint("wifi_observation",
			map[string]string{"bike": msg.Bike, "ssid": n.SSID, "kind": msg.Kind},
			map[string]interface{}{"rssi": n.RSSI, "channel": n.Channel},
			msg.Time))
	}
	return points
}
