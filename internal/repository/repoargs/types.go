package repoargs

type RepositoryName string

const (
	OrderRepoName    RepositoryName = "order"
	CreditRepoName   RepositoryName = "credit"
	ReferralRepoName RepositoryName = "referral"
)
