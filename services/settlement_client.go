// game-match-system/services/settlement_client.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// SettlementClient talks to the ledger service that custodies staked funds.
// The arena never moves money itself; it verifies locks before play and
// instructs payouts and refunds after.
type SettlementClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type settlementResponse struct {
	Verified bool   `json:"verified"`
	TxRef    string `json:"tx_ref"`
	Error    string `json:"error"`
}

func NewSettlementClient(baseURL, token string) *SettlementClient {
	return &SettlementClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SettlementClient) post(path string, reqBody map[string]interface{}) (*settlementResponse, error) {
	url := fmt.Sprintf("%s%s", c.BaseURL, path)
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token) // Arena → Ledger service token

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("LedgerService %s returned %d: %s", path, resp.StatusCode, string(body))
		return nil, fmt.Errorf("ledger call failed: %d", resp.StatusCode)
	}

	var out settlementResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyLock confirms the ledger holds a lock of exactly amount for wallet,
// identified by the client-supplied proof.
func (c *SettlementClient) VerifyLock(wallet, proof string, amount int64) error {
	out, err := c.post("/ledger/locks/verify", map[string]interface{}{
		"wallet": wallet,
		"proof":  proof,
		"amount": amount,
	})
	if err != nil {
		return err
	}
	if !out.Verified {
		return fmt.Errorf("lock not verified: %s", out.Error)
	}
	return nil
}

// SettleWinner releases the pot to the winner's wallet. Returns the ledger
// transaction reference.
func (c *SettlementClient) SettleWinner(matchID, wallet string, amount int64) (string, error) {
	out, err := c.post("/ledger/settlements", map[string]interface{}{
		"match_id": matchID,
		"wallet":   wallet,
		"amount":   amount,
		"kind":     "payout",
	})
	if err != nil {
		return "", err
	}
	return out.TxRef, nil
}

// Refund returns a single stake to its owner, used for draws and cancelled
// staked matches.
func (c *SettlementClient) Refund(matchID, wallet string, amount int64) (string, error) {
	out, err := c.post("/ledger/settlements", map[string]interface{}{
		"match_id": matchID,
		"wallet":   wallet,
		"amount":   amount,
		"kind":     "refund",
	})
	if err != nil {
		return "", err
	}
	return out.TxRef, nil
}
