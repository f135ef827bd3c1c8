package pcap

import (
	"Go2NetSDN/internal/testutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, link layers.LinkType, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, link))
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestReader_ReadFrames(t *testing.T) {
	udp := testutil.UDPFrame("00:00:00:00:00:0a", "00:00:00:00:00:0b", "10.0.0.1", "10.0.0.2")
	arp := testutil.ARPRequest("00:00:00:00:00:0a", "10.0.0.1", "10.0.0.100")
	path := writeCapture(t, layers.LinkTypeEthernet, udp, arp)

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	out := make(chan Frame)
	errc := make(chan error, 1)
	go func() { errc <- reader.ReadFrames(out) }()

	var got []Frame
	for f := range out {
		got = append(got, f)
	}
	require.NoError(t, <-errc)
	require.Len(t, got, 2)
	assert.Equal(t, udp, got[0].Data)
	assert.Equal(t, arp, got[1].Data)
	assert.Equal(t, time.Millisecond, got[1].Timestamp.Sub(got[0].Timestamp))
}

func TestNewReader_Errors(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)

	_, err = NewReader(writeCapture(t, layers.LinkTypeRaw))
	assert.ErrorContains(t, err, "unsupported link type")

	garbage := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(garbage, []byte("not a capture"), 0o644))
	_, err = NewReader(garbage)
	assert.Error(t, err)
}
