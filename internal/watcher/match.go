package watcher

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// Spends returns the first input of tx that spends a watched output.
// Coinbase inputs never match.
func Spends(tx *btcjson.TxRawResult, watched WatchList) (WatchedOutput, bool) {
	for _, vin := range tx.Vin {
		if vin.IsCoinBase() || vin.Txid == "" {
			continue
		}

		if watched.Contains(vin.Txid, vin.Vout) {
			return WatchedOutput{TxID: vin.Txid, Index: vin.Vout}, true
		}
	}
	return WatchedOutput{}, false
}

// summarize describes where a matched transaction sends its funds.
func summarize(tx *btcjson.TxRawResult) string {
	var total btcutil.Amount
	classes := make([]string, 0, len(tx.Vout))

	for _, vout := range tx.Vout {
		amount, err := btcutil.NewAmount(vout.Value)
		if err == nil {
			total += amount
		}

		class := vout.ScriptPubKey.Type
		if script, err := hex.DecodeString(vout.ScriptPubKey.Hex); err == nil && len(script) > 0 {
			class = txscript.GetScriptClass(script).String()
		}
		if class == "" {
			class = "unknown"
		}
		classes = append(classes, class)
	}

	return fmt.Sprintf("inputs=%d outputs=%d [%s] value=%s",
		len(tx.Vin), len(tx.Vout), strings.Join(classes, ","), total)
}

// shortTxID abbreviates long txids for log lines.
func shortTxID(txid string) string {
	if len(txid) <= 16 {
		return txid
	}
	return txid[:6] + "..." + txid[len(txid)-6:]
}
