// Package main provides a deterministic vault scenario runner. It wires
// the engine to in-memory stores and a stub oracle that doubles as the
// host: every instruction an operation emits is applied to the stub's
// balance table, so the next valuation read sees the moved funds.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"cosmossdk.io/math"
	"github.com/mr-tron/base58"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/oracle/stub"
	"pooled-vault/internal/storage/memory"
	"pooled-vault/internal/vault"
)

func main() {
	// Parse flags
	scenarioPath := flag.String("scenario", "", "Path to JSON scenario file (built-in walkthrough when omitted)")
	multiPool := flag.Bool("multi-pool", false, "Route the built-in scenario through two swap pools")
	outputJSON := flag.Bool("json", false, "Output summary as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[vaultsim] ", log.LstdFlags)

	scenario := builtinScenario(*multiPool)
	if *scenarioPath != "" {
		loaded, err := loadScenario(*scenarioPath)
		if err != nil {
			logger.Fatalf("load scenario: %v", err)
		}
		scenario = loaded
	}

	ctx := context.Background()

	host := stub.NewOracle()
	engine := vault.New(memory.NewLedgerStore(), memory.NewConfigStore(), host)

	runner := NewRunner(engine, host, !*outputJSON)

	stats, err := runner.Run(ctx, scenario)
	if err != nil {
		logger.Fatalf("simulation failed: %v", err)
	}

	// Output summary
	if *outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
	} else {
		printSummary(stats)
	}
}

// Scenario is the JSON simulation input: the vault's instantiate
// parameters, the host's seed state, and the ordered steps to run.
type Scenario struct {
	Owner      domain.Address      `json:"owner"`
	Underlying domain.Address      `json:"underlying"`
	Routing    domain.RoutingTable `json:"routing,omitempty"`
	Balances   []BalanceSeed       `json:"balances,omitempty"`
	Pools      []PoolSeed          `json:"pools,omitempty"`
	Steps      []Step              `json:"steps"`
}

// BalanceSeed fixes one holder's starting balance in a token.
type BalanceSeed struct {
	Holder domain.Address `json:"holder"`
	Token  domain.Address `json:"token"`
	Amount math.Int       `json:"amount"`
}

// PoolSeed registers one swap pool with a linear rate: 1 token2 =
// Num/Den token1.
type PoolSeed struct {
	Pool   domain.Address `json:"pool"`
	Token1 domain.Address `json:"token1"`
	Token2 domain.Address `json:"token2"`
	Num    int64          `json:"num"`
	Den    int64          `json:"den"`
}

// Step is one scenario action. "deposit" uses Actor and Amount,
// "withdraw" uses Actor and Shares, "grant" credits Amount of Token
// (the underlying when empty) straight to the vault, simulating yield.
type Step struct {
	Op     string         `json:"op"`
	Actor  domain.Address `json:"actor,omitempty"`
	Amount math.Int       `json:"amount,omitempty"`
	Shares math.Int       `json:"shares,omitempty"`
	Token  domain.Address `json:"token,omitempty"`
}

// loadScenario reads and decodes a scenario file.
func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	return &sc, nil
}

// builtinScenario is the classic walkthrough. Single-asset: a bootstrap
// deposit of 100, a second deposit of 50 priced at value 100, then a
// full redemption of the first depositor's shares at value 150. The
// multi-pool variant replaces the second deposit with receipt-token
// yield grants, since deposits are priced against the vault's direct
// underlying balance and routed capital empties it.
func builtinScenario(multiPool bool) *Scenario {
	var (
		owner      = simAddr(0x01)
		underlying = simAddr(0x02)
		alice      = simAddr(0x0A)
		bob        = simAddr(0x0B)
	)

	sc := &Scenario{
		Owner:      owner,
		Underlying: underlying,
		Balances: []BalanceSeed{
			{Holder: alice, Token: underlying, Amount: math.NewInt(1000)},
			{Holder: bob, Token: underlying, Amount: math.NewInt(1000)},
		},
		Steps: []Step{
			{Op: "deposit", Actor: alice, Amount: math.NewInt(100)},
			{Op: "deposit", Actor: bob, Amount: math.NewInt(50)},
			{Op: "withdraw", Actor: alice, Shares: math.NewInt(100)},
		},
	}

	if multiPool {
		poolA, receiptA := simAddr(0x21), simAddr(0x22)
		poolB, receiptB := simAddr(0x23), simAddr(0x24)
		sc.Routing = domain.TwoPoolRouting(poolA, receiptA, poolB, receiptB)
		sc.Pools = []PoolSeed{
			{Pool: poolA, Token1: underlying, Token2: receiptA, Num: 1, Den: 1},
			{Pool: poolB, Token1: underlying, Token2: receiptB, Num: 1, Den: 1},
		}
		sc.Steps = []Step{
			{Op: "deposit", Actor: alice, Amount: math.NewInt(100)},
			{Op: "grant", Token: receiptA, Amount: math.NewInt(25)},
			{Op: "grant", Token: receiptB, Amount: math.NewInt(25)},
			{Op: "withdraw", Actor: alice, Shares: math.NewInt(60)},
		}
	}

	return sc
}

func simAddr(b byte) domain.Address {
	return domain.Address(base58.Encode(bytes.Repeat([]byte{b}, 32)))
}

// SimStats holds simulation statistics.
type SimStats struct {
	VaultAddress     string            `json:"vault_address"`
	Steps            int               `json:"steps"`
	Deposits         int               `json:"deposits"`
	Withdrawals      int               `json:"withdrawals"`
	Grants           int               `json:"grants"`
	InstructionsRun  int               `json:"instructions_run"`
	FinalSupply      string            `json:"final_supply"`
	FinalVaultValue  string            `json:"final_vault_value"`
	ShareBalances    map[string]string `json:"share_balances"`
	SupplyConsistent bool              `json:"supply_consistent"`
}

// Runner executes scenario steps against a fresh engine and plays the
// host's role after each transition commits.
type Runner struct {
	engine  *vault.Engine
	host    *stub.Oracle
	verbose bool

	vaultAddr domain.Address
	actors    map[domain.Address]bool
	stats     SimStats
}

// NewRunner creates a scenario runner.
func NewRunner(engine *vault.Engine, host *stub.Oracle, verbose bool) *Runner {
	return &Runner{
		engine:  engine,
		host:    host,
		verbose: verbose,
		actors:  make(map[domain.Address]bool),
	}
}

// Run seeds the host, instantiates the vault, executes every step, and
// returns the final statistics.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*SimStats, error) {
	for _, p := range sc.Pools {
		r.host.RegisterPool(p.Pool, stub.Pool{Token1: p.Token1, Token2: p.Token2, Num: p.Num, Den: p.Den})
	}
	for _, b := range sc.Balances {
		r.host.SetBalance(b.Holder, b.Token, b.Amount)
	}

	cfg, err := r.engine.Instantiate(ctx, sc.Owner, sc.Underlying, sc.Routing)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}
	r.vaultAddr = cfg.VaultAddress
	r.stats.VaultAddress = string(cfg.VaultAddress)
	r.logf("Vault instantiated: address=%s underlying=%s routing_legs=%d",
		short(cfg.VaultAddress), short(cfg.UnderlyingToken), len(cfg.Routing))

	for i, step := range sc.Steps {
		if err := r.runStep(ctx, i+1, step, sc.Underlying); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		r.stats.Steps++
	}

	supply, err := r.engine.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("read total supply: %w", err)
	}
	value, err := r.engine.VaultValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("read vault value: %w", err)
	}
	report, err := r.engine.CheckInvariant(ctx)
	if err != nil {
		return nil, fmt.Errorf("check invariant: %w", err)
	}

	r.stats.FinalSupply = supply.String()
	r.stats.FinalVaultValue = value.String()
	r.stats.SupplyConsistent = report.Consistent
	r.stats.ShareBalances = make(map[string]string, len(r.actors))
	for actor := range r.actors {
		bal, err := r.engine.BalanceOf(ctx, actor)
		if err != nil {
			return nil, fmt.Errorf("read balance of %s: %w", actor, err)
		}
		r.stats.ShareBalances[string(actor)] = bal.String()
	}

	return &r.stats, nil
}

// runStep executes one scenario action and applies its instructions.
func (r *Runner) runStep(ctx context.Context, n int, step Step, underlying domain.Address) error {
	switch step.Op {
	case "deposit":
		res, err := r.engine.Deposit(ctx, step.Actor, step.Amount)
		if err != nil {
			return err
		}
		r.actors[step.Actor] = true
		r.stats.Deposits++
		r.logf("[%02d] deposit  actor=%s amount=%s shares=%s value=%s supply=%s",
			n, short(step.Actor), step.Amount, res.SharesMinted, res.VaultValue, res.TotalSupply)
		return r.apply(res.Instructions)

	case "withdraw":
		res, err := r.engine.Withdraw(ctx, step.Actor, step.Shares)
		if err != nil {
			return err
		}
		r.actors[step.Actor] = true
		r.stats.Withdrawals++
		r.logf("[%02d] withdraw actor=%s shares=%s amount=%s value=%s supply=%s",
			n, short(step.Actor), step.Shares, res.AmountRedeemed, res.VaultValue, res.TotalSupply)
		return r.apply(res.Instructions)

	case "grant":
		if step.Amount.IsNil() || !step.Amount.IsPositive() {
			return fmt.Errorf("grant amount must be positive")
		}
		token := step.Token
		if token.IsZero() {
			token = underlying
		}
		current, err := r.host.TokenBalance(ctx, r.vaultAddr, token)
		if err != nil {
			return err
		}
		r.host.SetBalance(r.vaultAddr, token, current.Add(step.Amount))
		r.stats.Grants++
		r.logf("[%02d] grant    token=%s amount=%s", n, short(token), step.Amount)
		return nil
	}

	return fmt.Errorf("unknown op %q", step.Op)
}

// apply runs each emitted instruction against the host and traces it.
func (r *Runner) apply(instructions []domain.Instruction) error {
	for _, inst := range instructions {
		r.logf("     %s", formatInstruction(inst))
		if err := r.host.ApplyInstruction(r.vaultAddr, inst); err != nil {
			return fmt.Errorf("apply %s: %w", inst.Kind, err)
		}
		r.stats.InstructionsRun++
	}
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if r.verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// formatInstruction renders one instruction for the trace.
func formatInstruction(inst domain.Instruction) string {
	switch inst.Kind {
	case domain.KindIncreaseAllowance:
		a := inst.IncreaseAllowance
		return fmt.Sprintf("increase_allowance token=%s spender=%s amount=%s", short(a.Token), short(a.Spender), a.Amount)
	case domain.KindTransfer:
		t := inst.Transfer
		return fmt.Sprintf("transfer token=%s recipient=%s amount=%s", short(t.Token), short(t.Recipient), t.Amount)
	case domain.KindTransferFrom:
		t := inst.TransferFrom
		return fmt.Sprintf("transfer_from token=%s owner=%s recipient=%s amount=%s", short(t.Token), short(t.Owner), short(t.Recipient), t.Amount)
	case domain.KindSwap:
		s := inst.Swap
		return fmt.Sprintf("swap pool=%s input=%s amount=%s min_output=%s", short(s.Pool), s.InputToken, s.InputAmount, s.MinOutput)
	}
	return string(inst.Kind)
}

// short truncates an address for trace readability.
func short(a domain.Address) string {
	s := string(a)
	if len(s) <= 8 {
		return s
	}
	return s[:8] + ".."
}

// printSummary outputs human-readable simulation statistics.
func printSummary(stats *SimStats) {
	fmt.Println()
	fmt.Println("=== Simulation Summary ===")
	fmt.Printf("Vault Address:     %s\n", stats.VaultAddress)
	fmt.Printf("Steps:             %d\n", stats.Steps)
	fmt.Printf("Deposits:          %d\n", stats.Deposits)
	fmt.Printf("Withdrawals:       %d\n", stats.Withdrawals)
	fmt.Printf("Grants:            %d\n", stats.Grants)
	fmt.Printf("Instructions Run:  %d\n", stats.InstructionsRun)
	fmt.Printf("Final Supply:      %s\n", stats.FinalSupply)
	fmt.Printf("Final Vault Value: %s\n", stats.FinalVaultValue)
	for holder, shares := range stats.ShareBalances {
		fmt.Printf("  %s holds %s shares\n", short(domain.Address(holder)), shares)
	}
	if stats.SupplyConsistent {
		fmt.Println("Invariant:         total supply equals sum of balances")
	} else {
		fmt.Println("Invariant:         VIOLATED: total supply does not equal sum of balances")
	}
}
