// main.go - End-to-end encrypted ledger scenario: owner + 3 account holders.
//
// This demonstrates the complete flow of the encrypted-value ledger:
//   - The owner mints an encrypted balance for Alice
//   - Alice transfers to Bob, then approves Bob as a spender
//   - Bob spends Alice's allowance toward Carol
//   - Alice appends an encrypted meter reading to her energy log
//   - Each holder decrypts their own balance through the trusted oracle;
//     nothing else ever leaves the coprocessor in clear text
//
// Usage:
//
//	go run main.go
//
// Architecture:
//   - All encrypted values live in one coprocessor table, addressed by handle
//   - The ledger contract holds handles only and reveals single booleans at
//     its comparison gates
//   - Decryption requires a per-handle grant recorded at mutation time

package main

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"cipherledger/internal/fhe"
	"cipherledger/internal/ledger"
)

const keyBits = 1024

func main() {
	log.Println("=== Encrypted Ledger: mint / transfer / approve / transferFrom scenario ===")

	owner := common.HexToAddress("0xaaa0")
	alice := common.HexToAddress("0xa11c")
	bob := common.HexToAddress("0xb0b0")
	carol := common.HexToAddress("0xca01")
	contract := common.HexToAddress("0xc0de")

	// 1. Setup: coprocessor (trusted oracle) and the ledger contract
	cop, err := fhe.NewCoprocessor(contract, keyBits)
	if err != nil {
		log.Printf("ERROR: coprocessor setup failed: %v", err)
		return
	}
	led := ledger.NewLedger(cop, owner)
	pk := cop.PublicKey()

	// 2. Owner mints 1000 for Alice
	if err := mint(led, pk, contract, owner, alice, 1000); err != nil {
		log.Printf("ERROR: mint failed: %v", err)
		return
	}
	log.Println("Owner minted 1000 for Alice")

	// 3. Alice transfers 300 to Bob
	cts, proof, err := fhe.EncryptInput(pk, contract, alice, 300)
	if err != nil {
		log.Printf("ERROR: encryption failed: %v", err)
		return
	}
	if err := led.Transfer(alice, bob, cts[0], proof); err != nil {
		log.Printf("ERROR: transfer failed: %v", err)
		return
	}
	log.Println("Alice transferred 300 to Bob")

	// 4. Alice approves Bob for 500
	cts, proof, err = fhe.EncryptInput(pk, contract, alice, 500)
	if err != nil {
		log.Printf("ERROR: encryption failed: %v", err)
		return
	}
	if err := led.Approve(alice, bob, cts[0], proof); err != nil {
		log.Printf("ERROR: approve failed: %v", err)
		return
	}
	log.Println("Alice approved Bob for 500")

	// 5. Bob spends 200 of the allowance toward Carol
	cts, proof, err = fhe.EncryptInput(pk, contract, bob, 200)
	if err != nil {
		log.Printf("ERROR: encryption failed: %v", err)
		return
	}
	if err := led.TransferFrom(bob, alice, carol, cts[0], proof); err != nil {
		log.Printf("ERROR: transferFrom failed: %v", err)
		return
	}
	log.Println("Bob moved 200 from Alice to Carol via allowance")

	// 6. Alice appends an encrypted meter reading
	cts, proof, err = fhe.EncryptInput(pk, contract, alice, 420, 137, 58)
	if err != nil {
		log.Printf("ERROR: encryption failed: %v", err)
		return
	}
	if err := led.AddEnergyLog(alice, "2026-08-23", cts[0], cts[1], cts[2], proof); err != nil {
		log.Printf("ERROR: energy log failed: %v", err)
		return
	}
	log.Println("Alice logged a meter reading for 2026-08-23")

	// 7. Each holder decrypts their own balance through the oracle
	fmt.Printf("\n=== Final State ===\n")
	for _, acct := range []struct {
		name string
		addr common.Address
	}{{"Alice", alice}, {"Bob", bob}, {"Carol", carol}} {
		v, err := cop.Decrypt64(led.BalanceOf(acct.addr), acct.addr)
		if err != nil {
			log.Printf("ERROR: %s balance decrypt failed: %v", acct.name, err)
			return
		}
		fmt.Printf("%s balance: %d\n", acct.name, v)
	}

	remaining, err := cop.Decrypt64(led.Allowance(alice, bob), bob)
	if err != nil {
		log.Printf("ERROR: allowance decrypt failed: %v", err)
		return
	}
	fmt.Printf("Alice->Bob allowance remaining: %d\n", remaining)

	entry, err := led.GetLog(alice, 0)
	if err != nil {
		log.Printf("ERROR: log read failed: %v", err)
		return
	}
	elec, err := cop.Decrypt64(entry.Electricity, alice)
	if err != nil {
		log.Printf("ERROR: reading decrypt failed: %v", err)
		return
	}
	fmt.Printf("Alice log[0] %s electricity: %d\n", entry.Date, elec)
	fmt.Printf("Events recorded: %d\n", len(led.Events()))
}

// mint encrypts an amount under the ledger's public key and mints it.
func mint(led *ledger.Ledger, pk *fhe.PublicKey, contract, owner, to common.Address, amount uint64) error {
	cts, proof, err := fhe.EncryptInput(pk, contract, owner, amount)
	if err != nil {
		return err
	}
	return led.Mint(owner, to, cts[0], proof)
}
