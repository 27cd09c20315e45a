package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"chainkernel/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Chain.ID != "chainkernel-mainnet" {
		t.Fatalf("unexpected chain id: %s", AppConfig.Chain.ID)
	}
	if AppConfig.VM.MaxGasPerBlock == 0 {
		t.Fatalf("expected a non-zero default max_gas_per_block")
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("devnet")
	if AppConfig.VM.MaxGasPerBlock != 1_000_000 {
		t.Fatalf("expected MaxGasPerBlock 1000000, got %d", AppConfig.VM.MaxGasPerBlock)
	}
	if AppConfig.Chain.ID != "chainkernel-devnet" {
		t.Fatalf("expected chain id override")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("chain:\n  id: sandbox\nvm:\n  max_gas_per_block: 42\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Chain.ID != "sandbox" {
		t.Fatalf("expected chain id sandbox, got %s", AppConfig.Chain.ID)
	}
	if AppConfig.VM.MaxGasPerBlock != 42 {
		t.Fatalf("expected MaxGasPerBlock 42, got %d", AppConfig.VM.MaxGasPerBlock)
	}
}
