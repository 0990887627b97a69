package registry

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"gridLadder/internal/asset"
	"gridLadder/internal/engine"
	"gridLadder/internal/fixedpoint"
	"gridLadder/internal/ladder"
	"gridLadder/internal/oracle"
)

var (
	deployBase   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	deployQuote  = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	deployEngine = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	deployOwner  = common.HexToAddress("0x00000000000000000000000000000000000000f2")
)

func deployFactory(t *testing.T) EngineFactory {
	t.Helper()

	now := time.Unix(1_700_000_000, 0)
	round := func(price int64) oracle.RoundData {
		return oracle.RoundData{
			RoundID:         big.NewInt(1),
			Answer:          new(big.Int).Mul(big.NewInt(price), fixedpoint.Pow10(8)),
			UpdatedAt:       uint64(now.Unix()) - 30,
			AnsweredInRound: big.NewInt(1),
			Decimals:        8,
		}
	}

	ledger := asset.NewMemoryLedger(deployEngine)
	ledger.SetDecimals(deployBase, 18)
	ledger.SetDecimals(deployQuote, 6)
	ledger.SetBalance(deployBase, deployOwner, new(big.Int).Mul(big.NewInt(100), fixedpoint.Pow10(18)))
	ledger.Approve(deployBase, deployOwner, new(big.Int).Mul(big.NewInt(100), fixedpoint.Pow10(18)))

	return func() *engine.Engine {
		return engine.New(engine.Deps{
			Ledger:    ledger,
			BaseFeed:  oracle.NewStaticFeed(round(2000)),
			QuoteFeed: oracle.NewStaticFeed(round(1)),
			Account:   deployEngine,
			Now:       func() time.Time { return now },
		})
	}
}

func deployParams() ladder.Params {
	one := fixedpoint.Pow10(18)
	return ladder.Params{
		RungCount:           3,
		InitialDeviationBps: 100,
		TakeProfitBps:       200,
		PriceGrowthBps:      11000,
		SizeGrowthBps:       500,
		BaseRungSize:        one,
		SubsequentRungSize:  one,
	}
}

func TestDeployRecordsInstance(t *testing.T) {
	store := NewMemoryStore()
	deployer := NewDeployer(deployFactory(t), store, nil)

	eng, instance, err := deployer.Deploy(context.Background(), deployParams(), deployBase, deployQuote, deployOwner)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !eng.Initialized() {
		t.Fatalf("deployed engine must be initialized")
	}
	if instance.ID == "" {
		t.Fatalf("instance id must be assigned")
	}
	if instance.Owner != deployOwner.Hex() {
		t.Fatalf("owner mismatch: %s", instance.Owner)
	}

	listed, err := store.ListInstances(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != instance.ID {
		t.Fatalf("instance not discoverable: %+v", listed)
	}
}

func TestDeployFailsOnBadParams(t *testing.T) {
	store := NewMemoryStore()
	deployer := NewDeployer(deployFactory(t), store, nil)

	params := deployParams()
	params.RungCount = 1
	if _, _, err := deployer.Deploy(context.Background(), params, deployBase, deployQuote, deployOwner); err == nil {
		t.Fatalf("expected error for invalid params")
	}

	listed, _ := store.ListInstances(context.Background())
	if len(listed) != 0 {
		t.Fatalf("failed deploy must not record an instance")
	}
}
