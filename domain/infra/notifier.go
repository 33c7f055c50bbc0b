package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/slack-go/slack"
	"github.com/sohosai/sos26-sub000/domain/model"
)

// Notifier はコミット後に呼ばれる。失敗してもロールバックはしない
type Notifier interface {
	InquiryCreated(context.Context, *model.Inquiry)
	AssigneeAdded(context.Context, *model.Inquiry, *model.Assignee)
	StatusChanged(context.Context, *model.Inquiry)
	CommentAdded(context.Context, *model.Inquiry, *model.InquiryComment)
}

type NopNotifier struct{}

func (NopNotifier) InquiryCreated(context.Context, *model.Inquiry) {}
func (NopNotifier) AssigneeAdded(context.Context, *model.Inquiry, *model.Assignee) {}
func (NopNotifier) StatusChanged(context.Context, *model.Inquiry) {}
func (NopNotifier) CommentAdded(context.Context, *model.Inquiry, *model.InquiryComment) {}

var _ Notifier = (*SlackNotifier)(nil)

type SlackNotifier struct {
	client        SlackAPI
	channelID     string
	baseURL       string
	userInfoCache *ttlcache.Cache[string, *slack.User]
}

func NewSlackNotifier(client SlackAPI, channelID, baseURL string) *SlackNotifier {
	n := &SlackNotifier{
		client:        client,
		channelID:     channelID,
		baseURL:       baseURL,
		userInfoCache: ttlcache.New(ttlcache.WithTTL[string, *slack.User](24 * time.Hour)),
	}
	go n.userInfoCache.Start()
	return n
}

func (n *SlackNotifier) Stop() {
	n.userInfoCache.Stop()
}

func getUserPreferredName(user *slack.User) string {
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	if user.RealName != "" {
		return user.RealName
	}
	return user.Name
}

func (n *SlackNotifier) getUserInfo(userID string) (*slack.User, error) {
	cacheKey := "user_" + userID
	if user := n.userInfoCache.Get(cacheKey); user != nil {
		return user.Value(), nil
	}
	user, err := n.client.GetUserInfo(userID)
	if err != nil {
		return nil, err
	}
	n.userInfoCache.Set(cacheKey, user, ttlcache.DefaultTTL)
	return user, nil
}

// Slack のユーザーでなければ ID をそのまま使う
func (n *SlackNotifier) displayName(userID string) string {
	user, err := n.getUserInfo(userID)
	if err != nil {
		slog.Warn("GetUserInfo failed", slog.String("userID", userID), slog.Any("err", err))
		return userID
	}
	return getUserPreferredName(user)
}

func (n *SlackNotifier) inquiryLink(inquiry *model.Inquiry) string {
	return fmt.Sprintf("<%s/committee/inquiries/%s|%s>", n.baseURL, inquiry.ID, inquiry.Title)
}

func (n *SlackNotifier) post(blocks ...slack.Block) {
	if _, _, err := n.client.PostMessage(n.channelID, slack.MsgOptionBlocks(blocks...)); err != nil {
		slog.Error("PostMessage failed", slog.String("channel", n.channelID), slog.Any("err", err))
	}
}

func (n *SlackNotifier) InquiryCreated(_ context.Context, inquiry *model.Inquiry) {
	n.post(
		slack.NewHeaderBlock(
			slack.NewTextBlockObject("plain_text", "📩 新しい問い合わせ", false, false),
		),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*📝 件名:* %s", n.inquiryLink(inquiry)), false, false),
			[]*slack.TextBlockObject{
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*作成者:* %s", inquiry.CreatorRole), false, false),
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*状態:* %s", inquiry.Status), false, false),
			},
			nil,
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf(">>> %s", inquiry.Body), false, false), // ボックス化
			nil, nil,
		),
	)
}

func (n *SlackNotifier) AssigneeAdded(_ context.Context, inquiry *model.Inquiry, a *model.Assignee) {
	n.post(
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf(":wave: %s さんが %s の担当者になりました", n.displayName(a.UserID), n.inquiryLink(inquiry)),
				false,
				false,
			),
			nil,
			nil,
		),
	)
}

func (n *SlackNotifier) StatusChanged(_ context.Context, inquiry *model.Inquiry) {
	text := fmt.Sprintf("🔄 %s の状態が %s になりました", n.inquiryLink(inquiry), inquiry.Status)
	if inquiry.Status == model.InquiryStatusResolved {
		text = fmt.Sprintf("✅ %s が解決済みになりました", n.inquiryLink(inquiry))
	}
	n.post(
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", text, false, false),
			nil, nil,
		),
	)
}

func (n *SlackNotifier) CommentAdded(_ context.Context, inquiry *model.Inquiry, c *model.InquiryComment) {
	n.post(
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("💬 %s にコメントがありました (%s)", n.inquiryLink(inquiry), n.displayName(c.SenderID)), false, false),
			nil, nil,
		),
		slack.NewContextBlock("",
			slack.NewTextBlockObject("mrkdwn", c.Body, false, false),
		),
	)
}
