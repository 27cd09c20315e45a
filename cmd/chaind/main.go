// Command chaind is the kernel's local operator CLI: it wires up an App
// the way a real node's init/start sequence would (load config, build the
// store and VM, run genesis) and drives it through blocks, printing the
// resulting BlockOutcome JSON the way an operator would read /block_results.
// It replaces the P2P/consensus driver spec.md §1 places out of scope with
// a scripted local block producer, suitable for devnet smoke-testing the
// core without a real validator set.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cmdconfig "chainkernel/cmd/config"
	"chainkernel/internal/fixtures"
	"chainkernel/num"
	"chainkernel/registry"
	"chainkernel/store"
	"chainkernel/vm"
	"chainkernel/wire"

	appkernel "chainkernel/app"
)

// devnetManifest is a devnet's scripted demo parameters, loaded directly
// via yaml.Unmarshal the same way the teacher's `testnet start
// <config.yaml>` command reads its node list — a plain YAML file, not the
// layered viper config pkg/config builds for the node's own settings.
type devnetManifest struct {
	Denom    string `yaml:"denom"`
	GasPrice uint64 `yaml:"gas_price"`
	Transfer struct {
		Amount uint64 `yaml:"amount"`
	} `yaml:"transfer"`
}

func loadDevnetManifest(path string) (devnetManifest, error) {
	m := devnetManifest{Denom: "uchain", GasPrice: 1}
	m.Transfer.Amount = 100
	if path == "" {
		return m, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read devnet manifest: %w", err)
	}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse devnet manifest: %w", err)
	}
	return m, nil
}

func main() {
	// A local .env overrides nothing by default (no file present is not an
	// error); it exists so an operator can pin CHAINKERNEL_ENV or override a
	// single config field without editing the YAML overlay files.
	_ = godotenv.Load()

	root := &cobra.Command{Use: "chaind", Short: "chainkernel devnet driver"}
	root.AddCommand(configCmd())
	root.AddCommand(devnetCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func configCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "load and print the node configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdconfig.LoadConfig(env)
			encoded, err := json.MarshalIndent(cmdconfig.AppConfig, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay to merge (e.g. devnet)")
	return cmd
}

func devnetCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "devnet", Short: "run an ephemeral in-memory devnet"}
	cmd.AddCommand(devnetRunCmd())
	return cmd
}

// devnetRunCmd bootstraps a bank, taxman and counter fixture under
// InitGenesis (the way a real chain's genesis deploys its core
// contracts), then runs numBlocks blocks: block 1 carries a demo transfer
// and block 2 a counter-increment transaction, and the rest are empty. No
// cron jobs are registered, so the empty blocks run no contract code.
func devnetRunCmd() *cobra.Command {
	var (
		env       string
		numBlocks int
		manifest  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "initialise genesis and finalize a handful of demo blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdconfig.LoadConfig(env)
			cfg := cmdconfig.AppConfig

			demo, err := loadDevnetManifest(manifest)
			if err != nil {
				return err
			}
			gasPrice := demo.GasPrice

			logger := logrus.StandardLogger()
			if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
				logger.SetLevel(level)
			}

			physical := store.NewMemStore()
			treeBacking := store.NewMemStore()
			reg := registry.New()
			nativeVM := vm.NewNativeVM()

			a := appkernel.New(cfg.Chain.ID, physical, treeBacking, reg, nativeVM, vm.NewCryptoApi(),
				cfg.VM.QueryDepth, cfg.VM.MessageDepth, logger)

			deployer := wire.Address{0xD0}
			receiver := wire.Address{0xFF}
			collector := wire.Address{0xC0}
			denom := wire.Denom(demo.Denom)

			bankCode := []byte("bank-code-v1")
			nativeVM.Register(wire.HashBytes(bankCode), fixtures.Bank())
			taxmanCode := []byte("taxman-code-v1")
			nativeVM.Register(wire.HashBytes(taxmanCode), fixtures.Taxman())
			counterCode := []byte("counter-code-v1")
			nativeVM.Register(wire.HashBytes(counterCode), fixtures.Counter())

			var bankAddr, taxmanAddr, counterAddr wire.Address
			genesisBlock := wire.BlockInfo{Height: 0, Time: 0}
			seed := func(shared store.Shared) (wire.ChainConfig, error) {
				var err error
				bankAddr, err = a.Engine.Bootstrap(shared, genesisBlock, deployer, bankCode, []byte("bank"), nil, "bank", json.RawMessage(`{}`))
				if err != nil {
					return wire.ChainConfig{}, err
				}
				taxmanAddr, err = a.Engine.Bootstrap(shared, genesisBlock, deployer, taxmanCode, []byte("taxman"), nil, "taxman", mustJSON(fixtures.TaxmanConfig{
					Denom:       denom,
					PricePerGas: num.NewUint128FromUint64(gasPrice),
					Collector:   collector,
					Bank:        bankAddr,
				}))
				if err != nil {
					return wire.ChainConfig{}, err
				}
				counterAddr, err = a.Engine.Bootstrap(shared, genesisBlock, deployer, counterCode, []byte("counter"), nil, "counter", json.RawMessage(`{"initial":0}`))
				if err != nil {
					return wire.ChainConfig{}, err
				}
				return wire.ChainConfig{
					Owner:       deployer,
					Bank:        bankAddr,
					Taxman:      taxmanAddr,
					Cronjobs:    map[wire.Address]uint64{},
					Upload:      wire.Permissions{Kind: wire.PermEverybody},
					Instantiate: wire.Permissions{Kind: wire.PermEverybody},
				}, nil
			}

			genesisOutcome, err := a.InitGenesis(0, seed)
			if err != nil {
				return fmt.Errorf("init genesis: %w", err)
			}
			logger.Infof("genesis committed: root=%s bank=%s taxman=%s counter=%s",
				genesisOutcome.NewStateRoot, bankAddr, taxmanAddr, counterAddr)

			for height := uint64(1); height <= uint64(numBlocks); height++ {
				block := wire.BlockInfo{Height: height, Time: int64(height) * 5}
				var txs []wire.Tx
				switch height {
				case 1:
					txs = []wire.Tx{{
						Sender:   deployer,
						GasLimit: 100_000,
						Msgs: []wire.Message{{
							Kind:     wire.KindTransfer,
							Transfer: &wire.TransferMsg{To: receiver, Coins: wire.Coins{{Denom: denom, Amount: num.NewUint128FromUint64(demo.Transfer.Amount)}}},
						}},
					}}
				case 2:
					txs = []wire.Tx{{
						Sender:   deployer,
						GasLimit: 100_000,
						Msgs: []wire.Message{{
							Kind: wire.KindExecute,
							Execute: &wire.ExecuteMsg{
								Contract: counterAddr,
								Msg:      json.RawMessage(`{"increment":{"by":1}}`),
							},
						}},
					}}
				}

				outcome, err := a.FinalizeBlock(block, txs)
				if err != nil {
					return fmt.Errorf("finalize block %d: %w", height, err)
				}
				encoded, err := json.Marshal(outcome)
				if err != nil {
					return err
				}
				fmt.Printf("block %d: %s\n", height, string(encoded))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay to merge (e.g. devnet)")
	cmd.Flags().IntVar(&numBlocks, "blocks", 3, "number of blocks to finalize after genesis")
	cmd.Flags().StringVar(&manifest, "manifest", "", "YAML file overriding the devnet's demo denom/gas-price/transfer amount")
	return cmd
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
