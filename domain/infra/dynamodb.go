package infra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sohosai/sos26-sub000/domain/model"
)

var _ Datastore = (*DynamoDB)(nil)

// 1テーブルに pk/sk でまとめて保存する
//
//	INQUIRY#<id>   META | ASSIGNEE#<user> | VIEWERS | ACTIVITY#<ts>#<id> | COMMENT#<ts>#<id> | ATTACHMENT#<file>
//	FILE#<id>      META | ATTACHED#<inquiry>
//	PROJECT#<id>   META | MEMBER#<user>
//	COMMITTEE#<user> META
type DynamoDB struct {
	db    *dynamodb.Client
	table string
}

type DynamoDBConfig struct {
	TableNamePrefix string
	// ローカルの DynamoDB を使うときのエンドポイント
	LocalEndpoint string
}

const (
	skMeta          = "META"
	prefixInquiry   = "INQUIRY#"
	prefixFile      = "FILE#"
	prefixProject   = "PROJECT#"
	prefixCommittee = "COMMITTEE#"
	prefixAssignee  = "ASSIGNEE#"
	skViewers       = "VIEWERS"
	prefixActivity  = "ACTIVITY#"
	prefixComment   = "COMMENT#"
	prefixAttach    = "ATTACHMENT#"
	prefixAttached  = "ATTACHED#"
	prefixMember    = "MEMBER#"

	// TransactWriteItems の上限
	maxTransactItems = 100
	// 自動遷移の競合時の再試行回数
	maxTransactRetries = 3

	sortKeyTimeFormat = "2006-01-02T15:04:05.000000000Z"
)

func NewDynamoDB(ctx context.Context, c DynamoDBConfig) (*DynamoDB, error) {
	prefix := c.TableNamePrefix
	if prefix == "" {
		prefix = "sos"
	}
	var db *dynamodb.Client
	if c.LocalEndpoint != "" {
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion("dummy"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg,
			func(o *dynamodb.Options) {
				o.BaseEndpoint = aws.String(c.LocalEndpoint)
			},
		)
	} else {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg)
	}
	d := &DynamoDB{
		db:    db,
		table: prefix + "_main",
	}
	if c.LocalEndpoint != "" {
		if err := d.EnsureTable(ctx); err != nil {
			return nil, err
		}
	}
	return d, nil
}

const (
	waitInterval = 2 * time.Second // ポーリング間隔
	maxRetries   = 30              // 最大リトライ回数 (30回 = 約1分)
)

func (d *DynamoDB) EnsureTable(ctx context.Context) error {
	_, err := d.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.table),
	})
	if err == nil {
		// テーブルが既に存在する
		return nil
	}

	_, err = d.db.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %v", d.table, err)
	}

	// テーブルがACTIVEになるまで待機
	for i := 0; i < maxRetries; i++ {
		out, err := d.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(d.table),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %v", d.table, err)
		}

		if out.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		time.Sleep(waitInterval)
	}

	return fmt.Errorf("table %s creation timed out", d.table)
}

func strAttr(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func boolAttr(v bool) types.AttributeValue {
	return &types.AttributeValueMemberBOOL{Value: v}
}

func numAttr(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func timeAttr(t time.Time) types.AttributeValue {
	if t.IsZero() {
		return strAttr("")
	}
	return strAttr(t.Format(time.RFC3339Nano))
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": strAttr(pk),
		"sk": strAttr(sk),
	}
}

func withKey(pk, sk string, attrs map[string]types.AttributeValue) map[string]types.AttributeValue {
	attrs["pk"] = strAttr(pk)
	attrs["sk"] = strAttr(sk)
	return attrs
}

func timeSortKey(prefix string, t time.Time, id string) string {
	return prefix + t.UTC().Format(sortKeyTimeFormat) + "#" + id
}

func getStringValue(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getBoolValue(item map[string]types.AttributeValue, key string) bool {
	if v, ok := item[key].(*types.AttributeValueMemberBOOL); ok {
		return v.Value
	}
	return false
}

func getNumberValue(item map[string]types.AttributeValue, key string) (int64, error) {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return strconv.ParseInt(v.Value, 10, 64)
	}
	return 0, fmt.Errorf("failed to parse %s", key)
}

func getTimeValue(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s := getStringValue(item, key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s (%s): %v", key, s, err)
	}
	return t, nil
}

// キャンセル理由のうち条件チェックで失敗した操作の位置を返す
func conditionFailedAt(err error) (int, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return 0, false
	}
	for i, r := range tce.CancellationReasons {
		if aws.ToString(r.Code) == "ConditionalCheckFailed" {
			return i, true
		}
	}
	return 0, false
}

func (d *DynamoDB) getItem(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	result, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return result.Item, nil
}

func (d *DynamoDB) queryPrefix(ctx context.Context, pk, skPrefix string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(d.db, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strAttr(pk),
			":prefix": strAttr(skPrefix),
		},
		ConsistentRead: aws.Bool(true),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
	}
	return items, nil
}

func (d *DynamoDB) transact(ctx context.Context, items []types.TransactWriteItem) error {
	if len(items) > maxTransactItems {
		return fmt.Errorf("too many transaction items: %d", len(items))
	}
	_, err := d.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return err
}

func (d *DynamoDB) put(item map[string]types.AttributeValue, cond string) types.TransactWriteItem {
	p := &types.Put{
		TableName: aws.String(d.table),
		Item:      item,
	}
	if cond != "" {
		p.ConditionExpression = aws.String(cond)
	}
	return types.TransactWriteItem{Put: p}
}

func (d *DynamoDB) inquiryExists(inquiryID string) types.TransactWriteItem {
	return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:           aws.String(d.table),
		Key:                 key(prefixInquiry+inquiryID, skMeta),
		ConditionExpression: aws.String("attribute_exists(pk)"),
	}}
}

func (d *DynamoDB) statusUpdate(inquiryID string, t StatusTransition, at time.Time) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           aws.String(d.table),
		Key:                 key(prefixInquiry+inquiryID, skMeta),
		UpdateExpression:    aws.String("SET #status = :to, updated_at = :updated_at"),
		ConditionExpression: aws.String("#status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":         strAttr(string(t.To)),
			":from":       strAttr(string(t.From)),
			":updated_at": timeAttr(at),
		},
	}}
}

func inquiryItem(i *model.Inquiry) map[string]types.AttributeValue {
	return withKey(prefixInquiry+i.ID, skMeta, map[string]types.AttributeValue{
		"id":           strAttr(i.ID),
		"title":        strAttr(i.Title),
		"body":         strAttr(i.Body),
		"status":       strAttr(string(i.Status)),
		"creator_role": strAttr(string(i.CreatorRole)),
		"project_id":   strAttr(i.ProjectID),
		"created_at":   timeAttr(i.CreatedAt),
		"updated_at":   timeAttr(i.UpdatedAt),
	})
}

func inquiryFromItem(item map[string]types.AttributeValue) (*model.Inquiry, error) {
	createdAt, err := getTimeValue(item, "created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := getTimeValue(item, "updated_at")
	if err != nil {
		return nil, err
	}
	return &model.Inquiry{
		ID:          getStringValue(item, "id"),
		Title:       getStringValue(item, "title"),
		Body:        getStringValue(item, "body"),
		Status:      model.InquiryStatus(getStringValue(item, "status")),
		CreatorRole: model.Side(getStringValue(item, "creator_role")),
		ProjectID:   getStringValue(item, "project_id"),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func assigneeItem(a *model.Assignee) map[string]types.AttributeValue {
	return withKey(prefixInquiry+a.InquiryID, prefixAssignee+a.UserID, map[string]types.AttributeValue{
		"id":          strAttr(a.ID),
		"inquiry_id":  strAttr(a.InquiryID),
		"user_id":     strAttr(a.UserID),
		"side":        strAttr(string(a.Side)),
		"is_creator":  boolAttr(a.IsCreator),
		"assigned_at": timeAttr(a.AssignedAt),
	})
}

func assigneeFromItem(item map[string]types.AttributeValue) (model.Assignee, error) {
	assignedAt, err := getTimeValue(item, "assigned_at")
	if err != nil {
		return model.Assignee{}, err
	}
	return model.Assignee{
		ID:         getStringValue(item, "id"),
		InquiryID:  getStringValue(item, "inquiry_id"),
		UserID:     getStringValue(item, "user_id"),
		Side:       model.Side(getStringValue(item, "side")),
		IsCreator:  getBoolValue(item, "is_creator"),
		AssignedAt: assignedAt,
	}, nil
}

// 閲覧者は置き換えで丸ごと入れ替わるので1アイテムのリストにまとめる
func viewersItem(inquiryID string, viewers []model.Viewer) map[string]types.AttributeValue {
	list := make([]types.AttributeValue, len(viewers))
	for i, v := range viewers {
		list[i] = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"id":           strAttr(v.ID),
			"scope":        strAttr(string(v.Scope)),
			"bureau_value": strAttr(v.BureauValue),
			"user_id":      strAttr(v.UserID),
			"position":     numAttr(int64(v.Position)),
			"created_at":   timeAttr(v.CreatedAt),
		}}
	}
	return withKey(prefixInquiry+inquiryID, skViewers, map[string]types.AttributeValue{
		"viewers": &types.AttributeValueMemberL{Value: list},
	})
}

func viewersFromItem(inquiryID string, item map[string]types.AttributeValue) ([]model.Viewer, error) {
	l, ok := item["viewers"].(*types.AttributeValueMemberL)
	if !ok {
		return []model.Viewer{}, nil
	}
	viewers := make([]model.Viewer, 0, len(l.Value))
	for _, av := range l.Value {
		m, ok := av.(*types.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("failed to parse viewers of %s", inquiryID)
		}
		createdAt, err := getTimeValue(m.Value, "created_at")
		if err != nil {
			return nil, err
		}
		position, err := getNumberValue(m.Value, "position")
		if err != nil {
			return nil, err
		}
		viewers = append(viewers, model.Viewer{
			ID:          getStringValue(m.Value, "id"),
			InquiryID:   inquiryID,
			Scope:       model.ViewerScope(getStringValue(m.Value, "scope")),
			BureauValue: getStringValue(m.Value, "bureau_value"),
			UserID:      getStringValue(m.Value, "user_id"),
			Position:    int(position),
			CreatedAt:   createdAt,
		})
	}
	return viewers, nil
}

func activityItem(a *model.Activity) map[string]types.AttributeValue {
	return withKey(prefixInquiry+a.InquiryID, timeSortKey(prefixActivity, a.CreatedAt, a.ID), map[string]types.AttributeValue{
		"id":         strAttr(a.ID),
		"inquiry_id": strAttr(a.InquiryID),
		"type":       strAttr(string(a.Type)),
		"actor_id":   strAttr(a.ActorID),
		"target_id":  strAttr(a.TargetID),
		"created_at": timeAttr(a.CreatedAt),
	})
}

func activityFromItem(item map[string]types.AttributeValue) (model.Activity, error) {
	createdAt, err := getTimeValue(item, "created_at")
	if err != nil {
		return model.Activity{}, err
	}
	return model.Activity{
		ID:        getStringValue(item, "id"),
		InquiryID: getStringValue(item, "inquiry_id"),
		Type:      model.ActivityType(getStringValue(item, "type")),
		ActorID:   getStringValue(item, "actor_id"),
		TargetID:  getStringValue(item, "target_id"),
		CreatedAt: createdAt,
	}, nil
}

func (d *DynamoDB) CreateInquiry(ctx context.Context, inquiry *model.Inquiry, creator *model.Assignee) error {
	err := d.transact(ctx, []types.TransactWriteItem{
		d.put(inquiryItem(inquiry), "attribute_not_exists(pk)"),
		d.put(assigneeItem(creator), "attribute_not_exists(pk)"),
	})
	if _, ok := conditionFailedAt(err); ok {
		return ErrDuplicate
	}
	return err
}

func (d *DynamoDB) GetInquiry(ctx context.Context, id string) (*model.Inquiry, error) {
	item, err := d.getItem(ctx, prefixInquiry+id, skMeta)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return inquiryFromItem(item)
}

func (d *DynamoDB) ListInquiries(ctx context.Context, projectID string) ([]model.Inquiry, error) {
	filter := "sk = :meta AND begins_with(pk, :prefix)"
	values := map[string]types.AttributeValue{
		":meta":   strAttr(skMeta),
		":prefix": strAttr(prefixInquiry),
	}
	if projectID != "" {
		filter += " AND project_id = :project_id"
		values[":project_id"] = strAttr(projectID)
	}

	var inquiries []model.Inquiry
	p := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName:                 aws.String(d.table),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			inquiry, err := inquiryFromItem(item)
			if err != nil {
				return nil, err
			}
			inquiries = append(inquiries, *inquiry)
		}
	}

	// Scan は順序を保証しないのでここでソート
	sort.Slice(inquiries, func(i, j int) bool {
		return inquiries[i].CreatedAt.After(inquiries[j].CreatedAt)
	})
	return inquiries, nil
}

func (d *DynamoDB) UpdateInquiryStatus(ctx context.Context, id string, t StatusTransition, act *model.Activity) error {
	err := d.transact(ctx, []types.TransactWriteItem{
		d.statusUpdate(id, t, act.CreatedAt),
		d.put(activityItem(act), ""),
	})
	if _, ok := conditionFailedAt(err); ok {
		return ErrStatusConflict
	}
	return err
}

func (d *DynamoDB) AddAssignee(ctx context.Context, a *model.Assignee, act *model.Activity, auto *StatusTransition) (bool, error) {
	for attempt := 0; attempt < maxTransactRetries; attempt++ {
		inquiry, err := d.GetInquiry(ctx, a.InquiryID)
		if err != nil {
			return false, err
		}
		if inquiry == nil {
			return false, ErrNotFound
		}

		transition := auto != nil && inquiry.Status == auto.From
		items := []types.TransactWriteItem{
			d.put(assigneeItem(a), "attribute_not_exists(pk)"),
			d.put(activityItem(act), ""),
		}
		if transition {
			items = append(items, d.statusUpdate(inquiry.ID, *auto, act.CreatedAt))
		} else {
			items = append(items, d.inquiryExists(inquiry.ID))
		}

		err = d.transact(ctx, items)
		if err == nil {
			return transition, nil
		}
		idx, ok := conditionFailedAt(err)
		if !ok {
			return false, err
		}
		if idx == 0 {
			return false, ErrDuplicate
		}
		// 読んだ後にステータスが変わったので読み直す
	}
	return false, ErrStatusConflict
}

func (d *DynamoDB) GetAssignee(ctx context.Context, inquiryID, assigneeID string) (*model.Assignee, error) {
	assignees, err := d.ListAssignees(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	for _, a := range assignees {
		if a.ID == assigneeID {
			return &a, nil
		}
	}
	return nil, nil
}

func (d *DynamoDB) ListAssignees(ctx context.Context, inquiryID string) ([]model.Assignee, error) {
	items, err := d.queryPrefix(ctx, prefixInquiry+inquiryID, prefixAssignee)
	if err != nil {
		return nil, err
	}
	assignees := make([]model.Assignee, 0, len(items))
	for _, item := range items {
		a, err := assigneeFromItem(item)
		if err != nil {
			return nil, err
		}
		assignees = append(assignees, a)
	}
	sort.SliceStable(assignees, func(i, j int) bool {
		return assignees[i].AssignedAt.Before(assignees[j].AssignedAt)
	})
	return assignees, nil
}

func (d *DynamoDB) RemoveAssignee(ctx context.Context, a *model.Assignee, act *model.Activity) error {
	err := d.transact(ctx, []types.TransactWriteItem{
		{Delete: &types.Delete{
			TableName:           aws.String(d.table),
			Key:                 key(prefixInquiry+a.InquiryID, prefixAssignee+a.UserID),
			ConditionExpression: aws.String("attribute_exists(pk) AND id = :id AND is_creator = :false"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":id":    strAttr(a.ID),
				":false": boolAttr(false),
			},
		}},
		d.put(activityItem(act), ""),
	})
	if _, ok := conditionFailedAt(err); ok {
		return ErrNotFound
	}
	return err
}

func (d *DynamoDB) ListViewers(ctx context.Context, inquiryID string) ([]model.Viewer, error) {
	item, err := d.getItem(ctx, prefixInquiry+inquiryID, skViewers)
	if err != nil {
		return nil, err
	}
	viewers, err := viewersFromItem(inquiryID, item)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(viewers, func(i, j int) bool {
		return viewers[i].Position < viewers[j].Position
	})
	return viewers, nil
}

func (d *DynamoDB) ReplaceViewers(ctx context.Context, inquiryID string, viewers []model.Viewer, act *model.Activity) error {
	for i := range viewers {
		viewers[i].InquiryID = inquiryID
		viewers[i].Position = i
	}
	err := d.transact(ctx, []types.TransactWriteItem{
		d.inquiryExists(inquiryID),
		d.put(viewersItem(inquiryID, viewers), ""),
		d.put(activityItem(act), ""),
	})
	if _, ok := conditionFailedAt(err); ok {
		return ErrNotFound
	}
	return err
}

// ステータスの条件で失敗したのか、問い合わせがないのかを判別する
func (d *DynamoDB) guardFailure(ctx context.Context, inquiryID string) error {
	inquiry, err := d.GetInquiry(ctx, inquiryID)
	if err != nil {
		return err
	}
	if inquiry == nil {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (d *DynamoDB) statusGuard(inquiryID string, blocked model.InquiryStatus) types.TransactWriteItem {
	return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:           aws.String(d.table),
		Key:                 key(prefixInquiry+inquiryID, skMeta),
		ConditionExpression: aws.String("attribute_exists(pk) AND #status <> :blocked"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":blocked": strAttr(string(blocked)),
		},
	}}
}

func (d *DynamoDB) AddComment(ctx context.Context, c *model.InquiryComment, blocked model.InquiryStatus) error {
	item := withKey(prefixInquiry+c.InquiryID, timeSortKey(prefixComment, c.CreatedAt, c.ID), map[string]types.AttributeValue{
		"id":          strAttr(c.ID),
		"inquiry_id":  strAttr(c.InquiryID),
		"body":        strAttr(c.Body),
		"sender_id":   strAttr(c.SenderID),
		"sender_side": strAttr(string(c.SenderSide)),
		"created_at":  timeAttr(c.CreatedAt),
	})
	err := d.transact(ctx, []types.TransactWriteItem{
		d.statusGuard(c.InquiryID, blocked),
		d.put(item, ""),
	})
	if _, ok := conditionFailedAt(err); ok {
		return d.guardFailure(ctx, c.InquiryID)
	}
	return err
}

func (d *DynamoDB) ListComments(ctx context.Context, inquiryID string) ([]model.InquiryComment, error) {
	items, err := d.queryPrefix(ctx, prefixInquiry+inquiryID, prefixComment)
	if err != nil {
		return nil, err
	}
	comments := make([]model.InquiryComment, 0, len(items))
	for _, item := range items {
		createdAt, err := getTimeValue(item, "created_at")
		if err != nil {
			return nil, err
		}
		comments = append(comments, model.InquiryComment{
			ID:         getStringValue(item, "id"),
			InquiryID:  getStringValue(item, "inquiry_id"),
			Body:       getStringValue(item, "body"),
			SenderID:   getStringValue(item, "sender_id"),
			SenderSide: model.Side(getStringValue(item, "sender_side")),
			CreatedAt:  createdAt,
		})
	}
	return comments, nil
}

func (d *DynamoDB) ListActivities(ctx context.Context, inquiryID string) ([]model.Activity, error) {
	items, err := d.queryPrefix(ctx, prefixInquiry+inquiryID, prefixActivity)
	if err != nil {
		return nil, err
	}
	activities := make([]model.Activity, 0, len(items))
	for _, item := range items {
		a, err := activityFromItem(item)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, nil
}

func attachmentAttrs(a *model.InquiryAttachment) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":             strAttr(a.ID),
		"inquiry_id":     strAttr(a.InquiryID),
		"file_id":        strAttr(a.FileID),
		"uploaded_by_id": strAttr(a.UploadedByID),
		"created_at":     timeAttr(a.CreatedAt),
	}
}

func attachmentFromItem(item map[string]types.AttributeValue) (model.InquiryAttachment, error) {
	createdAt, err := getTimeValue(item, "created_at")
	if err != nil {
		return model.InquiryAttachment{}, err
	}
	return model.InquiryAttachment{
		ID:           getStringValue(item, "id"),
		InquiryID:    getStringValue(item, "inquiry_id"),
		FileID:       getStringValue(item, "file_id"),
		UploadedByID: getStringValue(item, "uploaded_by_id"),
		CreatedAt:    createdAt,
	}, nil
}

func (d *DynamoDB) AddAttachment(ctx context.Context, a *model.InquiryAttachment, blocked model.InquiryStatus) error {
	err := d.transact(ctx, []types.TransactWriteItem{
		d.statusGuard(a.InquiryID, blocked),
		d.put(withKey(prefixInquiry+a.InquiryID, prefixAttach+a.FileID, attachmentAttrs(a)), "attribute_not_exists(pk)"),
		d.put(withKey(prefixFile+a.FileID, prefixAttached+a.InquiryID, attachmentAttrs(a)), ""),
	})
	idx, ok := conditionFailedAt(err)
	if !ok {
		return err
	}
	if idx == 1 {
		return ErrDuplicate
	}
	return d.guardFailure(ctx, a.InquiryID)
}

func (d *DynamoDB) listAttachments(ctx context.Context, pk, prefix string) ([]model.InquiryAttachment, error) {
	items, err := d.queryPrefix(ctx, pk, prefix)
	if err != nil {
		return nil, err
	}
	attachments := make([]model.InquiryAttachment, 0, len(items))
	for _, item := range items {
		a, err := attachmentFromItem(item)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	sort.SliceStable(attachments, func(i, j int) bool {
		return attachments[i].CreatedAt.Before(attachments[j].CreatedAt)
	})
	return attachments, nil
}

func (d *DynamoDB) ListAttachments(ctx context.Context, inquiryID string) ([]model.InquiryAttachment, error) {
	return d.listAttachments(ctx, prefixInquiry+inquiryID, prefixAttach)
}

func (d *DynamoDB) ListAttachmentsByFile(ctx context.Context, fileID string) ([]model.InquiryAttachment, error) {
	return d.listAttachments(ctx, prefixFile+fileID, prefixAttached)
}

func (d *DynamoDB) putItem(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	return err
}

func (d *DynamoDB) SaveFile(ctx context.Context, f *model.UploadedFile) error {
	return d.putItem(ctx, withKey(prefixFile+f.ID, skMeta, map[string]types.AttributeValue{
		"id":          strAttr(f.ID),
		"key":         strAttr(f.Key),
		"file_name":   strAttr(f.FileName),
		"mime_type":   strAttr(f.MimeType),
		"size":        numAttr(f.Size),
		"uploader_id": strAttr(f.UploaderID),
		"is_public":   boolAttr(f.IsPublic),
		"created_at":  timeAttr(f.CreatedAt),
	}))
}

func (d *DynamoDB) GetFile(ctx context.Context, id string) (*model.UploadedFile, error) {
	item, err := d.getItem(ctx, prefixFile+id, skMeta)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	createdAt, err := getTimeValue(item, "created_at")
	if err != nil {
		return nil, err
	}
	size, err := getNumberValue(item, "size")
	if err != nil {
		return nil, err
	}
	return &model.UploadedFile{
		ID:         getStringValue(item, "id"),
		Key:        getStringValue(item, "key"),
		FileName:   getStringValue(item, "file_name"),
		MimeType:   getStringValue(item, "mime_type"),
		Size:       size,
		UploaderID: getStringValue(item, "uploader_id"),
		IsPublic:   getBoolValue(item, "is_public"),
		CreatedAt:  createdAt,
	}, nil
}

func (d *DynamoDB) SaveProject(ctx context.Context, p *model.Project) error {
	return d.putItem(ctx, withKey(prefixProject+p.ID, skMeta, map[string]types.AttributeValue{
		"id":           strAttr(p.ID),
		"name":         strAttr(p.Name),
		"owner_id":     strAttr(p.OwnerID),
		"sub_owner_id": strAttr(p.SubOwnerID),
		"created_at":   timeAttr(p.CreatedAt),
	}))
}

func (d *DynamoDB) GetProject(ctx context.Context, id string) (*model.Project, error) {
	item, err := d.getItem(ctx, prefixProject+id, skMeta)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	createdAt, err := getTimeValue(item, "created_at")
	if err != nil {
		return nil, err
	}
	return &model.Project{
		ID:         getStringValue(item, "id"),
		Name:       getStringValue(item, "name"),
		OwnerID:    getStringValue(item, "owner_id"),
		SubOwnerID: getStringValue(item, "sub_owner_id"),
		CreatedAt:  createdAt,
	}, nil
}

func (d *DynamoDB) AddProjectMember(ctx context.Context, m *model.ProjectMember) error {
	_, err := d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item: withKey(prefixProject+m.ProjectID, prefixMember+m.UserID, map[string]types.AttributeValue{
			"id":         strAttr(m.ID),
			"project_id": strAttr(m.ProjectID),
			"user_id":    strAttr(m.UserID),
			"created_at": timeAttr(m.CreatedAt),
		}),
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrDuplicate
	}
	return err
}

func (d *DynamoDB) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	p, err := d.GetProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	if p.IsLeader(userID) {
		return true, nil
	}
	item, err := d.getItem(ctx, prefixProject+projectID, prefixMember+userID)
	if err != nil {
		return false, err
	}
	return item != nil, nil
}

func (d *DynamoDB) SaveCommitteeMember(ctx context.Context, m *model.CommitteeMember) error {
	m.DeletedAt = nil
	return d.putItem(ctx, withKey(prefixCommittee+m.UserID, skMeta, map[string]types.AttributeValue{
		"user_id":     strAttr(m.UserID),
		"bureau":      strAttr(string(m.Bureau)),
		"permissions": strAttr(m.Permissions),
		"created_at":  timeAttr(m.CreatedAt),
		"deleted_at":  strAttr(""),
	}))
}

func (d *DynamoDB) GetCommitteeMember(ctx context.Context, userID string) (*model.CommitteeMember, error) {
	item, err := d.getItem(ctx, prefixCommittee+userID, skMeta)
	if err != nil {
		return nil, err
	}
	if item == nil || getStringValue(item, "deleted_at") != "" {
		return nil, nil
	}
	createdAt, err := getTimeValue(item, "created_at")
	if err != nil {
		return nil, err
	}
	return &model.CommitteeMember{
		UserID:      getStringValue(item, "user_id"),
		Bureau:      model.Bureau(getStringValue(item, "bureau")),
		Permissions: getStringValue(item, "permissions"),
		CreatedAt:   createdAt,
	}, nil
}

func (d *DynamoDB) RemoveCommitteeMember(ctx context.Context, userID string) error {
	_, err := d.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              key(prefixCommittee+userID, skMeta),
		UpdateExpression: aws.String("SET deleted_at = :deleted_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":deleted_at": timeAttr(timeNow()),
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil
	}
	return err
}
