package chain

// predictionMarketABI is the fixed ABI of the deployed PredictionMarket
// contract. The contract itself is an external, already-audited collaborator;
// only this surface is consumed.
const predictionMarketABI = `[
  {"type":"function","name":"createMarket","stateMutability":"nonpayable",
   "inputs":[{"name":"question","type":"string"},{"name":"duration","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"placeBet","stateMutability":"payable",
   "inputs":[{"name":"marketId","type":"uint256"},{"name":"side","type":"bool"}],
   "outputs":[]},
  {"type":"function","name":"resolveMarket","stateMutability":"nonpayable",
   "inputs":[{"name":"marketId","type":"uint256"},{"name":"outcome","type":"bool"}],
   "outputs":[]},
  {"type":"function","name":"claimWinnings","stateMutability":"nonpayable",
   "inputs":[{"name":"betId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"calculateWinnings","stateMutability":"view",
   "inputs":[{"name":"betId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getMarket","stateMutability":"view",
   "inputs":[{"name":"marketId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"id","type":"uint256"},
     {"name":"question","type":"string"},
     {"name":"totalYesStake","type":"uint256"},
     {"name":"totalNoStake","type":"uint256"},
     {"name":"endTime","type":"uint256"},
     {"name":"resolved","type":"bool"},
     {"name":"outcome","type":"bool"},
     {"name":"creator","type":"address"},
     {"name":"exists","type":"bool"}]}]},
  {"type":"function","name":"getBet","stateMutability":"view",
   "inputs":[{"name":"betId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"id","type":"uint256"},
     {"name":"marketId","type":"uint256"},
     {"name":"bettor","type":"address"},
     {"name":"side","type":"bool"},
     {"name":"amount","type":"uint256"},
     {"name":"claimed","type":"bool"}]}]},
  {"type":"function","name":"getMarketOdds","stateMutability":"view",
   "inputs":[{"name":"marketId","type":"uint256"}],
   "outputs":[{"name":"yesOdds","type":"uint256"},{"name":"noOdds","type":"uint256"}]},
  {"type":"function","name":"getUserBets","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"event","name":"MarketCreated","inputs":[
    {"name":"marketId","type":"uint256","indexed":true},
    {"name":"question","type":"string","indexed":false},
    {"name":"endTime","type":"uint256","indexed":false},
    {"name":"creator","type":"address","indexed":true}]},
  {"type":"event","name":"BetPlaced","inputs":[
    {"name":"betId","type":"uint256","indexed":true},
    {"name":"marketId","type":"uint256","indexed":true},
    {"name":"bettor","type":"address","indexed":true},
    {"name":"side","type":"bool","indexed":false},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"MarketResolved","inputs":[
    {"name":"marketId","type":"uint256","indexed":true},
    {"name":"outcome","type":"bool","indexed":false},
    {"name":"totalYesStake","type":"uint256","indexed":false},
    {"name":"totalNoStake","type":"uint256","indexed":false}]},
  {"type":"event","name":"WinningsClaimed","inputs":[
    {"name":"betId","type":"uint256","indexed":true},
    {"name":"bettor","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]}
]`
