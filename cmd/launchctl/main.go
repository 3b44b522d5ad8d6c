// Package main provides launchctl, an offline operator tool for presale launches:
// tier tables, buy quotes, refund and settlement previews, address derivation
// and vanity mint grinding.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"meme-presale/internal/address"
	"meme-presale/internal/config"
	"meme-presale/internal/domain"
	"meme-presale/internal/pricing"
)

var (
	tierFlag = &cli.StringFlag{
		Name:    "tier",
		Aliases: []string{"t"},
		Usage:   "funding raise tier name or index",
		Value:   "TwentySol",
	}
	feeBpsFlag = &cli.UintFlag{
		Name:    "fee-bps",
		Usage:   "success fee in basis points",
		Value:   config.DefaultSuccessFeeBps,
		EnvVars: []string{"SUCCESS_FEE_BPS"},
	}
	programIDFlag = &cli.StringFlag{
		Name:    "program-id",
		Usage:   "program id used for address derivation",
		Value:   config.DefaultProgramID,
		EnvVars: []string{"PROGRAM_ID"},
	}
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to YAML config file",
		EnvVars: []string{"PRESALE_CONFIG"},
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "launchctl",
		Usage: "presale launch operator tool",
		Commands: []*cli.Command{
			{
				Name:   "tiers",
				Usage:  "List funding raise tiers",
				Action: tiersAction,
			},
			{
				Name:  "quote",
				Usage: "Token allocation for a deposit",
				Flags: []cli.Flag{
					tierFlag,
					&cli.StringFlag{Name: "deposit", Usage: "deposit in SOL", Required: true},
					&cli.Uint64Flag{Name: "sold", Usage: "tokens already sold (raw units)"},
				},
				Action: quoteAction,
			},
			{
				Name:  "refund",
				Usage: "Refund preview for returned tokens on a failed launch",
				Flags: []cli.Flag{
					tierFlag,
					feeBpsFlag,
					&cli.Uint64Flag{Name: "units", Usage: "returned token units (raw)", Required: true},
				},
				Action: refundAction,
			},
			{
				Name:  "settlement",
				Usage: "Success distribution preview",
				Flags: []cli.Flag{
					tierFlag,
					feeBpsFlag,
					&cli.Uint64Flag{Name: "pool-fee", Usage: "pool creation fee (lamports)", Value: config.DefaultPoolCreationFee},
					&cli.Uint64Flag{Name: "creator-gain", Usage: "creator gain (lamports)", Value: config.DefaultCreatorGain},
				},
				Action: settlementAction,
			},
			{
				Name:  "address",
				Usage: "Derive the launch address of a creator and index",
				Flags: []cli.Flag{
					programIDFlag,
					&cli.StringFlag{Name: "creator", Required: true},
					&cli.UintFlag{Name: "index"},
				},
				Action: addressAction,
			},
			{
				Name:  "grind",
				Usage: "Search for a mint seed whose address ends with a suffix",
				Flags: []cli.Flag{
					programIDFlag,
					&cli.StringFlag{Name: "suffix", Value: config.DefaultMintSuffix},
					&cli.Uint64Flag{Name: "start", Usage: "first seed"},
					&cli.Uint64Flag{Name: "attempts", Value: config.DefaultGrindAttempts},
				},
				Action: grindAction,
			},
			{
				Name:   "check-config",
				Usage:  "Load and validate a server config",
				Flags:  []cli.Flag{configFlag},
				Action: checkConfigAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseTier(ctx *cli.Context) (domain.FundingRaiseTier, error) {
	return domain.ParseTier(ctx.String(tierFlag.Name))
}

func feeBps(ctx *cli.Context) (uint16, error) {
	bps := uint64(ctx.Uint(feeBpsFlag.Name))
	if bps > domain.BasisPointsDenominator {
		return 0, fmt.Errorf("fee-bps %d exceeds %d", bps, domain.BasisPointsDenominator)
	}
	return uint16(bps), nil
}

func tiersAction(ctx *cli.Context) error {
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tTARGET (SOL)\tDURATION\tUNIT PRICE")
	for _, t := range domain.AllTiers() {
		price, err := pricing.UnitPrice(t)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%dh\t%d\n",
			uint8(t), t, domain.FormatLamports(t.Target()), t.Duration()/3600, price)
	}
	return w.Flush()
}

func quoteAction(ctx *cli.Context) error {
	tier, err := parseTier(ctx)
	if err != nil {
		return err
	}
	deposit, err := domain.ParseSOL(ctx.String("deposit"))
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	sold := ctx.Uint64("sold")
	if sold > domain.SellableSupply {
		return fmt.Errorf("sold %d exceeds sellable supply %d", sold, domain.SellableSupply)
	}

	units, err := pricing.Allocation(deposit, tier)
	if err != nil {
		return err
	}
	remaining := domain.SellableSupply - sold
	maxDeposit, err := pricing.MaxDeposit(remaining, tier)
	if err != nil {
		return err
	}

	out := ctx.App.Writer
	fmt.Fprintf(out, "tier:        %s\n", tier)
	fmt.Fprintf(out, "deposit:     %s SOL\n", domain.FormatLamports(deposit))
	fmt.Fprintf(out, "tokens:      %s (%d units)\n", domain.FormatTokens(units), units)
	fmt.Fprintf(out, "max deposit: %s SOL\n", domain.FormatLamports(maxDeposit))
	if units > remaining {
		fmt.Fprintf(out, "exceeds remaining allocation of %s tokens\n", domain.FormatTokens(remaining))
	}
	return nil
}

func refundAction(ctx *cli.Context) error {
	tier, err := parseTier(ctx)
	if err != nil {
		return err
	}
	bps, err := feeBps(ctx)
	if err != nil {
		return err
	}

	gross, err := pricing.Refund(ctx.Uint64("units"), tier, domain.SellableSupply)
	if err != nil {
		return err
	}
	split, err := pricing.SplitFee(gross, bps)
	if err != nil {
		return err
	}

	out := ctx.App.Writer
	fmt.Fprintf(out, "gross: %s SOL\n", domain.FormatLamports(split.Gross))
	fmt.Fprintf(out, "fee:   %s SOL\n", domain.FormatLamports(split.Fee))
	fmt.Fprintf(out, "net:   %s SOL\n", domain.FormatLamports(split.Net))
	return nil
}

func settlementAction(ctx *cli.Context) error {
	tier, err := parseTier(ctx)
	if err != nil {
		return err
	}
	bps, err := feeBps(ctx)
	if err != nil {
		return err
	}

	split, err := pricing.SplitFee(tier.Target(), bps)
	if err != nil {
		return err
	}
	poolFee, gain := ctx.Uint64("pool-fee"), ctx.Uint64("creator-gain")
	wrap, err := pricing.WrapAmount(split, poolFee, gain)
	if err != nil {
		return err
	}

	out := ctx.App.Writer
	fmt.Fprintf(out, "raised:       %s SOL\n", domain.FormatLamports(split.Gross))
	fmt.Fprintf(out, "fee:          %s SOL\n", domain.FormatLamports(split.Fee))
	fmt.Fprintf(out, "creator gain: %s SOL\n", domain.FormatLamports(gain))
	fmt.Fprintf(out, "pool fee:     %s SOL\n", domain.FormatLamports(poolFee))
	fmt.Fprintf(out, "wrapped:      %s SOL\n", domain.FormatLamports(wrap))
	return nil
}

func addressAction(ctx *cli.Context) error {
	d, err := address.NewDeriver(ctx.String(programIDFlag.Name), 0)
	if err != nil {
		return err
	}
	idx := ctx.Uint("index")
	if uint64(idx) > uint64(^uint32(0)) {
		return fmt.Errorf("index %d out of range", idx)
	}
	addr, err := d.LaunchAddress(ctx.String("creator"), uint32(idx))
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, addr)
	return nil
}

func grindAction(ctx *cli.Context) error {
	d, err := address.NewDeriver(ctx.String(programIDFlag.Name), 0)
	if err != nil {
		return err
	}
	seed, addr, err := d.GrindMint(ctx.Context, ctx.String("suffix"), ctx.Uint64("start"), ctx.Uint64("attempts"))
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "seed: %d\nmint: %s\n", seed, addr)
	return nil
}

func checkConfigAction(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "config ok: admin=%s fee=%dbps suffix=%q memory=%t\n",
		cfg.Sale.Admin, cfg.Sale.SuccessFeeBps, cfg.Sale.MintSuffix, cfg.Storage.UseMemory)
	return nil
}
