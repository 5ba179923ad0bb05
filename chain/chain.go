// Package chain assembles unsigned Kadena transfer commands. Signing, local
// simulation, submission, and confirmation are owned by an external wallet
// client; this package only builds the request payload.
package chain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// Testnet defaults matching the hosted wallet configuration.
	NetworkID      = "testnet04"
	DefaultChainID = "0"

	transferGasLimit = 2500
	transferGasPrice = 0.000001
	transferTTL      = 28800
)

// Capability is one entry of a signer's capability list.
type Capability struct {
	Name string        `json:"name"`
	Args []interface{} `json:"args"`
}

// Signer identifies a signing key and the capabilities it grants.
type Signer struct {
	PubKey string       `json:"pubKey"`
	CList  []Capability `json:"clist"`
}

// Meta is the command metadata block.
type Meta struct {
	ChainID  string  `json:"chainId"`
	GasLimit int64   `json:"gasLimit"`
	GasPrice float64 `json:"gasPrice"`
	Sender   string  `json:"sender"`
	TTL      int64   `json:"ttl"`
}

// Exec is the executable payload.
type Exec struct {
	Data map[string]interface{} `json:"data"`
	Code string                 `json:"code"`
}

// Payload wraps the exec block.
type Payload struct {
	Exec Exec `json:"exec"`
}

// Command is an unsigned transaction ready for an external signer.
type Command struct {
	NetworkID string   `json:"networkId"`
	Payload   Payload  `json:"payload"`
	Signers   []Signer `json:"signers"`
	Meta      Meta     `json:"meta"`
	Nonce     string   `json:"nonce"`
}

// Client is the opaque wallet/chain collaborator. Implementations sign,
// submit and watch transactions; none of that lives in this repository.
type Client interface {
	SignAndSubmit(ctx context.Context, cmd Command) (requestKey string, err error)
	Simulate(ctx context.Context, cmd Command) error
	Listen(ctx context.Context, requestKey string) error
}

// TransferRequest describes one KDA transfer.
type TransferRequest struct {
	Sender       string
	SenderPubKey string
	Receiver     string
	Amount       string // decimal, e.g. "1.5"
	ChainID      string // defaults to DefaultChainID
}

var amountRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

// BuildTransfer assembles the unsigned coin.transfer command for r.
func BuildTransfer(r TransferRequest) (Command, error) {
	if r.Sender == "" || r.Receiver == "" {
		return Command{}, errors.New("sender and receiver are required")
	}
	if r.Sender == r.Receiver {
		return Command{}, errors.New("sender cannot be the receiver of a transfer")
	}
	if r.SenderPubKey == "" {
		return Command{}, errors.New("sender public key is required")
	}
	amount := strings.TrimSpace(r.Amount)
	if !amountRe.MatchString(amount) {
		return Command{}, fmt.Errorf("invalid amount %q", r.Amount)
	}
	if !strings.Contains(amount, ".") {
		// Pact requires a decimal literal.
		amount += ".0"
	}
	chainID := r.ChainID
	if chainID == "" {
		chainID = DefaultChainID
	}

	code := fmt.Sprintf("(coin.transfer %q %q %s)", r.Sender, r.Receiver, amount)
	return Command{
		NetworkID: NetworkID,
		Payload:   Payload{Exec: Exec{Data: map[string]interface{}{}, Code: code}},
		Signers: []Signer{{
			PubKey: r.SenderPubKey,
			CList: []Capability{
				{Name: "coin.GAS", Args: []interface{}{}},
				{Name: "coin.TRANSFER", Args: []interface{}{r.Sender, r.Receiver, amount}},
			},
		}},
		Meta: Meta{
			ChainID:  chainID,
			GasLimit: transferGasLimit,
			GasPrice: transferGasPrice,
			Sender:   r.Sender,
			TTL:      transferTTL,
		},
		Nonce: "agentk-transfer-" + uuid.NewString(),
	}, nil
}
