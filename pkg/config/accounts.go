package config

import (
	"fmt"
	"os"

	"atm-ledger/pkg/directory"

	"github.com/shopspring/decimal"
	"go.yaml.in/yaml/v2"
)

// AccountsFile is the YAML provisioning document:
//
//	accounts:
//	  - number: "12345"
//	    holder: John Doe
//	    type: Savings
//	    pin: "1234"
//	    balance: "5000"
type AccountsFile struct {
	Accounts []AccountSpec `yaml:"accounts"`
}

// AccountSpec is one provisioned account. Exactly one of Pin and PinDigest
// should be set; PinDigest must come from the configured hasher.
type AccountSpec struct {
	Number    string `yaml:"number"`
	Holder    string `yaml:"holder"`
	Type      string `yaml:"type"`
	Pin       string `yaml:"pin"`
	PinDigest string `yaml:"pin_digest"`
	Balance   string `yaml:"balance"`
}

// Provision converts the entry into a directory provisioning request.
func (a AccountSpec) Provision() (directory.Provision, error) {
	balance := decimal.Zero
	if a.Balance != "" {
		var err error
		balance, err = decimal.NewFromString(a.Balance)
		if err != nil {
			return directory.Provision{}, fmt.Errorf("account %s: invalid balance %q: %w", a.Number, a.Balance, err)
		}
	}
	if balance.IsNegative() {
		return directory.Provision{}, fmt.Errorf("account %s: negative initial balance %s", a.Number, balance)
	}
	if a.Pin != "" && a.PinDigest != "" {
		return directory.Provision{}, fmt.Errorf("account %s: set pin or pin_digest, not both", a.Number)
	}

	return directory.Provision{
		Number:         a.Number,
		Holder:         a.Holder,
		Type:           a.Type,
		Secret:         a.Pin,
		Digest:         a.PinDigest,
		InitialBalance: balance,
	}, nil
}

// LoadAccounts reads the provisioning file at path.
func LoadAccounts(path string) ([]directory.Provision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	return ParseAccounts(data)
}

// ParseAccounts decodes a YAML provisioning document.
func ParseAccounts(data []byte) ([]directory.Provision, error) {
	var file AccountsFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}

	out := make([]directory.Provision, 0, len(file.Accounts))
	for _, spec := range file.Accounts {
		p, err := spec.Provision()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// DefaultAccounts returns the two demo accounts used when no file is configured.
func DefaultAccounts() []directory.Provision {
	return []directory.Provision{
		{
			Number:         "12345",
			Holder:         "John Doe",
			Type:           "Savings",
			Secret:         "1234",
			InitialBalance: decimal.NewFromInt(5000),
		},
		{
			Number:         "67890",
			Holder:         "Jane Smith",
			Type:           "Checking",
			Secret:         "5678",
			InitialBalance: decimal.NewFromInt(3000),
		},
	}
}

// Accounts returns the provisioning list: the accounts file if configured,
// otherwise DefaultAccounts.
func (c *Config) Accounts() ([]directory.Provision, error) {
	if c.AccountsFile == "" {
		return DefaultAccounts(), nil
	}
	return LoadAccounts(c.AccountsFile)
}
