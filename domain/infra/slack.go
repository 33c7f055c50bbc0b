package infra

import "github.com/slack-go/slack"

//go:generate mockgen -source=slack.go -destination=slack_mock_test.go -package=infra
type SlackAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	GetUserInfo(userID string) (*slack.User, error)
}
