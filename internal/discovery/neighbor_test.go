package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/lanscan/internal/errors"
)

const procARPFixture = `IP address       HW type     Flags       HW address            Mask     Device
192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
192.168.1.2      0x1         0x2         11:22:33:44:55:66     *        eth0
192.168.1.3      0x1         0x0         00:00:00:00:00:00     *        eth0
`

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF"},
		{"aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF"},
		{"0:1c:42:a:b:c", "00:1C:42:0A:0B:0C"},
		{"00:00:00:00:00:00", ""},
		{"ff-ff-ff-ff-ff-ff", ""},
		{"aa:bb:cc", ""},
		{"zz:bb:cc:dd:ee:ff", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMAC(tt.in), tt.in)
	}
}

func TestParseProcARP(t *testing.T) {
	table := ParseProcARP(procARPFixture)
	assert.Len(t, table, 2, "incomplete entry skipped")
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", table["192.168.1.1"])
	assert.Equal(t, "11:22:33:44:55:66", table["192.168.1.2"])
	assert.Empty(t, ParseProcARP(""))
}

func TestParseARPCommand(t *testing.T) {
	t.Run("linux", func(t *testing.T) {
		output := `Address                  HWtype  HWaddress           Flags Mask            Iface
192.168.1.1              ether   aa:bb:cc:dd:ee:ff   C                     eth0
192.168.1.9                      (incomplete)                              eth0
`
		table := ParseARPCommand(output)
		assert.Equal(t, map[string]string{"192.168.1.1": "AA:BB:CC:DD:EE:FF"}, table)
	})

	t.Run("darwin", func(t *testing.T) {
		output := `? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
? (192.168.1.2) at 0:1c:42:a:b:c on en0 ifscope [ethernet]
? (192.168.1.3) at (incomplete) on en0 ifscope [ethernet]
`
		table := ParseARPCommand(output)
		assert.Len(t, table, 2)
		assert.Equal(t, "00:1C:42:0A:0B:0C", table["192.168.1.2"])
	})

	t.Run("windows", func(t *testing.T) {
		output := `
Interface: 192.168.1.100 --- 0x4
  Internet Address      Physical Address      Type
  192.168.1.1           aa-bb-cc-dd-ee-ff     dynamic
  192.168.1.255         ff-ff-ff-ff-ff-ff     static
`
		table := ParseARPCommand(output)
		assert.Equal(t, map[string]string{"192.168.1.1": "AA:BB:CC:DD:EE:FF"}, table)
	})
}

func TestProcNeighborTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arp")
	require.NoError(t, os.WriteFile(path, []byte(procARPFixture), 0600))

	table := NewProcNeighborTable(path)

	mac, err := table.HardwareAddr(context.Background(), "192.168.1.2")
	require.NoError(t, err)
	assert.Equal(t, "11:22:33:44:55:66", mac)

	_, err = table.HardwareAddr(context.Background(), "192.168.1.3")
	assert.True(t, errors.IsCode(err, errors.CodeNoResult))

	missing := NewProcNeighborTable(filepath.Join(t.TempDir(), "absent"))
	_, err = missing.HardwareAddr(context.Background(), "192.168.1.2")
	assert.True(t, errors.IsCode(err, errors.CodeToolUnavailable))

	assert.Equal(t, DefaultProcARPPath, NewProcNeighborTable("").Path)
}

func TestCommandNeighborTableMissingTool(t *testing.T) {
	table := &CommandNeighborTable{Command: "lanscan-no-such-arp-binary"}
	_, err := table.HardwareAddr(context.Background(), "192.168.1.1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeToolUnavailable))
}

type staticNeighbors struct {
	macs map[string]string
	err  error
}

func (s staticNeighbors) HardwareAddr(_ context.Context, addr string) (string, error) {
	if mac, ok := s.macs[addr]; ok {
		return mac, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", errors.NewScanError(errors.CodeNoResult, "neighbor_table", addr, "no neighbor entry")
}

func TestChainNeighborTable(t *testing.T) {
	unavailable := staticNeighbors{err: errors.ErrToolUnavailable("neighbor_table", "arp", nil)}
	hit := staticNeighbors{macs: map[string]string{"10.0.0.5": "00:1F:3B:00:00:05"}}

	chain := ChainNeighborTable{unavailable, hit}
	mac, err := chain.HardwareAddr(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "00:1F:3B:00:00:05", mac)

	_, err = chain.HardwareAddr(context.Background(), "10.0.0.6")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeToolUnavailable))
	assert.True(t, errors.IsCode(err, errors.CodeNoResult))

	_, err = ChainNeighborTable{}.HardwareAddr(context.Background(), "10.0.0.6")
	assert.True(t, errors.IsCode(err, errors.CodeNoResult))
}
