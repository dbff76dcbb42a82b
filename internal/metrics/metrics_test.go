package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollectorExposesIncrementedCounters(t *testing.T) {
	c := New()
	c.IncKeepalivePacket()
	c.IncKeepalivePacket()
	c.IncStatusEventReply("rekordbox_hello")
	c.SetDevicesActive(3)
	c.IncRpcCall("mount")
	c.IncQueryFrame("artist")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "prolink_keepalive_packets_received_total 2") {
		t.Fatalf("expected keepalive packet count 2, got body:\n%s", body)
	}
	if !strings.Contains(body, `prolink_statusevent_replies_total{kind="rekordbox_hello"} 1`) {
		t.Fatalf("expected statusevent reply count, got body:\n%s", body)
	}
	if !strings.Contains(body, "prolink_devices_active 3") {
		t.Fatalf("expected devices_active gauge 3, got body:\n%s", body)
	}
}

func TestNilCollectorMethodsAreNoOps(t *testing.T) {
	var c *Collector
	c.IncKeepalivePacket()
	c.IncStatusEventReply("x")
	c.SetDevicesActive(1)
	c.IncRpcCall("nfs")
	c.IncQueryFrame("album")
}
