package testutil

import "forge-go/internal/forge"

// StubCatalog returns a fixed device list or error.
type StubCatalog struct {
	Devices []forge.BlockDevice
	Err     error
}

func (c *StubCatalog) ListRemovableDevices() ([]forge.BlockDevice, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Devices, nil
}
