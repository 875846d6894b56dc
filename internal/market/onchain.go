package market

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coinsentry/internal/detector"
)

const aggregatorABIJSON = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// OnchainOptions parameterise the on-chain price source.
type OnchainOptions struct {
	RPCURL      string
	Aggregators map[string]string
	Timeout     time.Duration
}

// Onchain reads Chainlink aggregator feeds over Ethereum RPC.
type Onchain struct {
	opts      OnchainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnchain builds an on-chain price source.
func NewOnchain(opts OnchainOptions, logger zerolog.Logger) *Onchain {
	return &Onchain{opts: opts, logger: logger.With().Str("component", "onchain_source").Logger()}
}

// FetchPrices reads every configured aggregator. A feed that fails to answer
// is skipped for this pass; the remaining feeds still contribute.
func (o *Onchain) FetchPrices(ctx context.Context) ([]detector.Observation, error) {
	if o.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}
	if len(o.opts.Aggregators) == 0 {
		return nil, errors.New("no aggregator addresses configured")
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return nil, err
	}

	observations := make([]detector.Observation, 0, len(o.opts.Aggregators))
	for asset, address := range o.opts.Aggregators {
		obs, err := o.readAggregator(ctx, client, asset, address)
		if err != nil {
			o.logger.Warn().Err(err).Str("asset", asset).Msg("aggregator read failed, skipping asset")
			continue
		}
		observations = append(observations, obs)
	}

	return observations, nil
}

func (o *Onchain) readAggregator(ctx context.Context, client *ethclient.Client, asset, address string) (detector.Observation, error) {
	addr := common.HexToAddress(address)

	payload, err := aggregatorABI.Pack("decimals")
	if err != nil {
		return detector.Observation{}, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return detector.Observation{}, err
	}
	outputs, err := aggregatorABI.Unpack("decimals", res)
	if err != nil {
		return detector.Observation{}, err
	}
	if len(outputs) != 1 {
		return detector.Observation{}, errors.New("unexpected decimals response")
	}
	decimals, ok := outputs[0].(uint8)
	if !ok {
		return detector.Observation{}, errors.New("failed to decode decimals output")
	}

	payload, err = aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return detector.Observation{}, err
	}
	res, err = client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return detector.Observation{}, err
	}
	outputs, err = aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return detector.Observation{}, err
	}
	if len(outputs) != 5 {
		return detector.Observation{}, errors.New("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return detector.Observation{}, errors.New("failed to decode answer output")
	}
	if answer.Sign() <= 0 {
		return detector.Observation{}, errors.New("aggregator answered a non-positive price")
	}
	updatedAt, ok := outputs[3].(*big.Int)
	if !ok {
		return detector.Observation{}, errors.New("failed to decode updatedAt output")
	}

	price := decimal.NewFromBigInt(answer, -int32(decimals))
	observedAt := time.Unix(updatedAt.Int64(), 0).UTC()

	return detector.Observation{AssetID: asset, Price: price, ObservedAt: observedAt}, nil
}

func (o *Onchain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ Source = (*Onchain)(nil)
