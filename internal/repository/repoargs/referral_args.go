package repoargs

type ReferralEdgeCreate struct {
	ReferrerID     int64
	RefereeID      int64
	Code           string
	ReferrerReward int64
	RefereeReward  int64
}
