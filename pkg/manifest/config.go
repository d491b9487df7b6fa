// Package manifest describes the ipcmd configuration file.
package manifest

// Config is the top-level manifest.
type Config struct {
	Manager   Manager   `toml:"manager"`
	Console   Console   `toml:"console"`
	Admin     Admin     `toml:"admin"`
	Factories []Factory `toml:"factory"`
	IPCPs     []IPCP    `toml:"ipcp"`
	Flows     []Flow    `toml:"flow"`
}

// Validate fills defaults and cross-checks the boot sections: every ipcp
// names a known factory and every flow a known ipcp.
func (c *Config) Validate() error {
	if err := c.Manager.validate(); err != nil {
		return err
	}
	if err := c.Console.validate(); err != nil {
		return err
	}
	if err := c.Admin.validate(); err != nil {
		return err
	}
	if err := c.validateFactories(); err != nil {
		return err
	}
	if err := c.validateIPCPs(); err != nil {
		return err
	}
	return c.validateFlows()
}
