package core

import (
	"fmt"

	"github.com/brocaar/lorawan"
	"github.com/brocaar/lorawan/band"
)

// DefaultRegions lists the band plans offered by "set region", in index order
var DefaultRegions = []band.Name{
	band.Name("RU864"),
	band.Name("EU868"),
	band.Name("IN865"),
	band.Name("KR920"),
	band.Name("AS923"),
	band.Name("US915"),
}

// Region is one selectable band with its uplink channel frequencies
type Region struct {
	Name     string
	Channels []uint32 // Hz, indexed by channel number
}

// RegionTable holds the regions the gateway can be switched between
type RegionTable struct {
	regions []Region
}

// NewRegionTable builds channel plans from the LoRaWAN regional parameters
func NewRegionTable(names []band.Name) (*RegionTable, error) {
	t := &RegionTable{regions: make([]Region, 0, len(names))}

	for _, name := range names {
		b, err := band.GetConfig(name, false, lorawan.DwellTimeNoLimit)
		if err != nil {
			return nil, fmt.Errorf("load band %s: %w", name, err)
		}

		indices := b.GetUplinkChannelIndices()
		region := Region{Name: string(name), Channels: make([]uint32, 0, len(indices))}
		for _, i := range indices {
			ch, err := b.GetUplinkChannel(i)
			if err != nil {
				return nil, fmt.Errorf("band %s channel %d: %w", name, i, err)
			}
			region.Channels = append(region.Channels, uint32(ch.Frequency))
		}
		if len(region.Channels) == 0 {
			return nil, fmt.Errorf("band %s has no uplink channels", name)
		}

		t.regions = append(t.regions, region)
	}

	return t, nil
}

// NewStaticRegionTable wraps a fixed list of regions
func NewStaticRegionTable(regions ...Region) *RegionTable {
	return &RegionTable{regions: regions}
}

// Len returns the number of regions
func (t *RegionTable) Len() int {
	return len(t.regions)
}

// Region returns the region at index i
func (t *RegionTable) Region(i int) (Region, bool) {
	if i < 0 || i >= len(t.regions) {
		return Region{}, false
	}
	return t.regions[i], true
}

// Frequency returns the frequency of channel ch in region i
func (t *RegionTable) Frequency(region, ch int) (uint32, bool) {
	r, ok := t.Region(region)
	if !ok || ch < 0 || ch >= len(r.Channels) {
		return 0, false
	}
	return r.Channels[ch], true
}
