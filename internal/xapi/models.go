package xapi

// User is the subset of tweet author fields the tool surfaces.
type User struct {
	UserName  string `json:"userName"`
	Name      string `json:"name"`
	Followers int64  `json:"followers"`
	Verified  bool   `json:"isBlueVerified"`
}

// Tweet is one tweet as returned by the upstream API. IDs are snowflakes:
// totally ordered and monotonically assigned, which the watch core relies on.
type Tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"createdAt"`
	Author        User   `json:"author"`
	LikeCount     int64  `json:"likeCount"`
	RetweetCount  int64  `json:"retweetCount"`
	ReplyCount    int64  `json:"replyCount"`
	ConversationID string `json:"conversationId"`
}

type tweetsResponse struct {
	Tweets      []Tweet `json:"tweets"`
	HasNextPage bool    `json:"has_next_page"`
	NextCursor  string  `json:"next_cursor"`
}

// Trend is one trending topic entry.
type Trend struct {
	Name       string `json:"name"`
	TweetCount int64  `json:"tweet_count"`
}

type trendsResponse struct {
	Trends []Trend `json:"trends"`
}

// createdAtFormat is the upstream's timestamp layout.
const createdAtFormat = "Mon Jan 02 15:04:05 -0700 2006"
