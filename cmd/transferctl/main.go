// Command transferctl generates keys and builds signed, encrypted transfer
// envelopes for the API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/securebank/internal/auth"
	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/security"
)

var (
	app = kingpin.New("transferctl", "Client tooling for the secure transfer API.")

	keygen     = app.Command("keygen", "Write an RSA key pair as <name>.key and <name>.pub.")
	keygenName = keygen.Flag("name", "File name prefix.").Default("client").String()
	keygenDir  = keygen.Flag("out-dir", "Output directory.").Default(".").ExistingDir()
	keygenBits = keygen.Flag("bits", "Key size.").Default("2048").Int()

	seal = app.Command("seal", "Print a sealed envelope for a transfer.")
	send = app.Command("send", "Seal a transfer and POST it.")

	token         = app.Command("token", "Mint an operator access token.")
	tokenSecret   = token.Flag("secret", "JWT secret.").Envar("JWT_SECRET").Required().String()
	tokenIssuer   = token.Flag("issuer", "JWT issuer.").Default("securebank").String()
	tokenOperator = token.Flag("operator", "Operator id.").Required().String()
	tokenRole     = token.Flag("role", "Operator role.").Default(auth.RoleViewer).Enum(auth.RoleManager, auth.RoleViewer)
	tokenTTL      = token.Flag("ttl", "Token lifetime.").Default("15m").Duration()
)

type transferFlags struct {
	clientID  *string
	clientKey *string
	serverPub *string
	from      *string
	to        *string
	amount    *string
	desc      *string
	idemKey   *string
}

func transferCommand(cmd *kingpin.CmdClause) transferFlags {
	return transferFlags{
		clientID:  cmd.Flag("client-id", "Client id registered with the API.").Default("demo_client").String(),
		clientKey: cmd.Flag("client-key", "Client private key PEM file.").Required().ExistingFile(),
		serverPub: cmd.Flag("server-pub", "Server public key PEM file.").Required().ExistingFile(),
		from:      cmd.Flag("from", "Source account id.").Required().String(),
		to:        cmd.Flag("to", "Destination account id.").Required().String(),
		amount:    cmd.Flag("amount", "Amount, e.g. 250.00.").Required().String(),
		desc:      cmd.Flag("description", "Transfer description.").String(),
		idemKey:   cmd.Flag("idempotency-key", "Idempotency key.").String(),
	}
}

var (
	sealFlags = transferCommand(seal)
	sendFlags = transferCommand(send)
	sendURL   = send.Flag("url", "API base URL.").Default("http://localhost:8080").String()
	sendDEK   = send.Flag("data-key", "DATA_ENCRYPTION_KEY, to open sealed responses.").Envar("DATA_ENCRYPTION_KEY").String()
)

func main() {
	switch kingpin.MustParse(app.Parse(os.Args[1:])) {
	case keygen.FullCommand():
		app.FatalIfError(runKeygen(), "keygen")
	case seal.FullCommand():
		env, err := buildEnvelope(sealFlags)
		app.FatalIfError(err, "seal")
		app.FatalIfError(printJSON(env), "seal")
	case send.FullCommand():
		app.FatalIfError(runSend(), "send")
	case token.FullCommand():
		tm := auth.NewTokenManager(*tokenSecret, *tokenIssuer, *tokenTTL)
		tok, _, err := tm.Issue(*tokenOperator, *tokenRole)
		app.FatalIfError(err, "token")
		fmt.Println(tok)
	}
}

func runKeygen() error {
	priv, pub, err := security.GenerateKeyPair(*keygenBits)
	if err != nil {
		return err
	}
	base := filepath.Join(*keygenDir, *keygenName)
	if err := os.WriteFile(base+".key", priv, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(base+".pub", pub, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s.key and %s.pub\n", base, base)
	return nil
}

func buildEnvelope(f transferFlags) (models.SecureEnvelope, error) {
	amount, err := decimal.NewFromString(*f.amount)
	if err != nil {
		return models.SecureEnvelope{}, fmt.Errorf("amount: %w", err)
	}
	rawKey, err := os.ReadFile(*f.clientKey)
	if err != nil {
		return models.SecureEnvelope{}, err
	}
	clientKey, err := security.ParsePrivateKey(rawKey)
	if err != nil {
		return models.SecureEnvelope{}, err
	}
	rawPub, err := os.ReadFile(*f.serverPub)
	if err != nil {
		return models.SecureEnvelope{}, err
	}
	serverPub, err := security.ParsePublicKey(rawPub)
	if err != nil {
		return models.SecureEnvelope{}, err
	}

	return security.Seal(models.TransferInstruction{
		ClientID:       *f.clientID,
		FromAccountID:  *f.from,
		ToAccountID:    *f.to,
		Amount:         amount,
		Description:    *f.desc,
		IdempotencyKey: *f.idemKey,
	}, clientKey, serverPub, time.Now(), uuid.NewString())
}

func runSend() error {
	env, err := buildEnvelope(sendFlags)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *sendURL+"/api/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "status:", res.Status)

	var sealed security.SealedBody
	if *sendDEK != "" && json.Unmarshal(raw, &sealed) == nil && sealed.Payload != "" {
		s, err := security.NewResponseSealer(*sendDEK)
		if err != nil {
			return err
		}
		if raw, err = s.Open(sealed); err != nil {
			return fmt.Errorf("open response: %w", err)
		}
	}
	_, err = os.Stdout.Write(append(raw, '\n'))
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
