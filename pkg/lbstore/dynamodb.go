package lbstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/function61/lovebeat/pkg/lbdomain"
)

// single table, partition key "pk":
//
//	s#<id>   {conf, state, history, version}   (the watched item)
//	m#<lbl>  {members: SS}
//	labels   {members: SS}
//	l#<lbl>  {conf}
//
// optimistic concurrency = conditional write on "version" inside TransactWriteItems
type dynamoDbRecord map[string]*dynamodb.AttributeValue

const (
	attrPk      = "pk"
	attrConf    = "conf"
	attrState   = "state"
	attrHistory = "history"
	attrVersion = "version"
	attrMembers = "members"

	labelsPk = "labels"
)

func dynamoServicePk(id string) string   { return "s#" + id }
func dynamoMembersPk(lbl string) string  { return "m#" + lbl }
func dynamoLabelConfPk(lbl string) string { return "l#" + lbl }

type DynamoDB struct {
	svc   dynamodbiface.DynamoDBAPI
	table *string
}

var _ Store = (*DynamoDB)(nil)

func NewDynamoDB(region string, table string) (*DynamoDB, error) {
	awsSession, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("NewDynamoDB: %w", err)
	}

	return NewDynamoDBWithClient(
		dynamodb.New(awsSession, aws.NewConfig().WithRegion(region)),
		table), nil
}

func NewDynamoDBWithClient(svc dynamodbiface.DynamoDBAPI, table string) *DynamoDB {
	return &DynamoDB{svc, aws.String(table)}
}

// HTTP-based client, nothing to close
func (d *DynamoDB) Close() error {
	return nil
}

func (d *DynamoDB) Get(ctx context.Context, id string) (*lbdomain.Service, error) {
	service, _, _, err := d.getService(ctx, id)
	return service, err
}

func (d *DynamoDB) Transact(ctx context.Context, id string, fn TxFn) error {
	current, history, version, err := d.getService(ctx, id)
	if err != nil {
		return err
	}

	change, err := fn(current)
	if err != nil || change == nil {
		return err
	}

	items := []*dynamodb.TransactWriteItem{}

	switch {
	case change.Delete:
		if current == nil {
			return nil // nothing to delete
		}

		items = append(items, &dynamodb.TransactWriteItem{
			Delete: &dynamodb.Delete{
				TableName:                 d.table,
				Key:                       pkKey(dynamoServicePk(id)),
				ConditionExpression:       aws.String("#version = :v"),
				ExpressionAttributeNames:  attrNames(attrVersion),
				ExpressionAttributeValues: dynamoDbRecord{":v": mkDynamoNumber(version)},
			},
		})
	case change.Put != nil:
		if change.Beat != nil {
			history = appendBeat(history, *change.Beat)
		}

		item, err := serializeServiceToDynamoDb(*change.Put, history, version+1)
		if err != nil {
			return err
		}

		put := &dynamodb.Put{
			TableName: d.table,
			Item:      item,
		}
		if current == nil {
			put.ConditionExpression = aws.String("attribute_not_exists(#pk)")
			put.ExpressionAttributeNames = attrNames(attrPk)
		} else {
			put.ConditionExpression = aws.String("#version = :v")
			put.ExpressionAttributeNames = attrNames(attrVersion)
			put.ExpressionAttributeValues = dynamoDbRecord{":v": mkDynamoNumber(version)}
		}

		items = append(items, &dynamodb.TransactWriteItem{Put: put})
	default:
		return fmt.Errorf("Transact %s: change without Put or Delete", id)
	}

	add, remove := indexChanges(change)

	for _, lbl := range add {
		items = append(items, d.membersUpdate(dynamoMembersPk(lbl), "ADD", []string{id}))
	}
	for _, lbl := range remove {
		items = append(items, d.membersUpdate(dynamoMembersPk(lbl), "DELETE", []string{id}))
	}
	if len(change.LabelsAdded) > 0 {
		items = append(items, d.membersUpdate(labelsPk, "ADD", change.LabelsAdded))
	}

	_, err = d.svc.TransactWriteItemsWithContext(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if isDynamoConflict(err) {
		return ErrConflict
	}

	return err
}

func (d *DynamoDB) Members(ctx context.Context, label string) ([]string, error) {
	return d.getMembers(ctx, dynamoMembersPk(label))
}

func (d *DynamoDB) Labels(ctx context.Context) ([]string, error) {
	return d.getMembers(ctx, labelsPk)
}

func (d *DynamoDB) LabelConfig(ctx context.Context, label string) (*lbdomain.LabelConfig, error) {
	conf := &lbdomain.LabelConfig{}

	item, err := d.getItem(ctx, dynamoLabelConfPk(label))
	if err != nil || item == nil {
		return conf, err
	}

	if attr, found := item[attrConf]; found && attr.S != nil {
		if err := json.Unmarshal([]byte(*attr.S), conf); err != nil {
			return nil, fmt.Errorf("label %s: %w", label, err)
		}
	}

	return conf, nil
}

func (d *DynamoDB) SetLabelConfig(ctx context.Context, label string, conf lbdomain.LabelConfig) error {
	asJson, err := json.Marshal(conf)
	if err != nil {
		return err
	}

	items := []*dynamodb.TransactWriteItem{
		{
			Put: &dynamodb.Put{
				TableName: d.table,
				Item: dynamoDbRecord{
					attrPk:   mkDynamoString(dynamoLabelConfPk(label)),
					attrConf: mkDynamoString(string(asJson)),
				},
			},
		},
	}

	if label != lbdomain.LabelAll {
		items = append(items, d.membersUpdate(labelsPk, "ADD", []string{label}))
	}

	_, err = d.svc.TransactWriteItemsWithContext(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return err
}

func (d *DynamoDB) History(ctx context.Context, id string) ([]lbdomain.Beat, error) {
	_, history, _, err := d.getService(ctx, id)
	return history, err
}

func (d *DynamoDB) getService(ctx context.Context, id string) (*lbdomain.Service, []lbdomain.Beat, int64, error) {
	item, err := d.getItem(ctx, dynamoServicePk(id))
	if err != nil {
		return nil, nil, 0, err
	}

	if item == nil {
		return nil, []lbdomain.Beat{}, 0, nil
	}

	return deserializeServiceFromDynamoDb(id, item)
}

func (d *DynamoDB) getItem(ctx context.Context, pk string) (dynamoDbRecord, error) {
	out, err := d.svc.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      d.table,
		Key:            pkKey(pk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	if len(out.Item) == 0 {
		return nil, nil
	}

	return out.Item, nil
}

func (d *DynamoDB) getMembers(ctx context.Context, pk string) ([]string, error) {
	item, err := d.getItem(ctx, pk)
	if err != nil {
		return nil, err
	}

	members := []string{}
	if attr, found := item[attrMembers]; found {
		members = aws.StringValueSlice(attr.SS)
	}

	sort.Strings(members)

	return members, nil
}

// op is ADD or DELETE. DynamoDB drops the attribute when the set becomes empty.
func (d *DynamoDB) membersUpdate(pk string, op string, members []string) *dynamodb.TransactWriteItem {
	return &dynamodb.TransactWriteItem{
		Update: &dynamodb.Update{
			TableName:                d.table,
			Key:                      pkKey(pk),
			UpdateExpression:         aws.String(op + " #members :m"),
			ExpressionAttributeNames: attrNames(attrMembers),
			ExpressionAttributeValues: dynamoDbRecord{
				":m": {SS: aws.StringSlice(members)},
			},
		},
	}
}

// a cancelled transaction is a lost race only if every item that failed, failed its
// condition or collided with another transaction. validation errors, throttling etc. are not.
func isDynamoConflict(err error) bool {
	switch e := err.(type) {
	case *dynamodb.TransactionCanceledException:
		codes := []string{}
		for _, reason := range e.CancellationReasons {
			codes = append(codes, aws.StringValue(reason.Code))
		}
		if len(codes) == 0 { // reasons didn't make it into the struct, they're in the message too
			codes = cancellationCodesFromMessage(e.Message())
		}

		return cancelledByConflictOnly(codes)
	case awserr.Error:
		switch e.Code() {
		case dynamodb.ErrCodeConditionalCheckFailedException:
			return true
		case dynamodb.ErrCodeTransactionCanceledException:
			return cancelledByConflictOnly(cancellationCodesFromMessage(e.Message()))
		}
	}

	return false
}

func cancelledByConflictOnly(codes []string) bool {
	conflicts := 0

	for _, code := range codes {
		switch code {
		case "None", "":
		case "ConditionalCheckFailed", "TransactionConflict":
			conflicts++
		default:
			return false
		}
	}

	return conflicts > 0
}

// "Transaction cancelled, please refer cancellation reasons for specific reasons [None, ConditionalCheckFailed]"
func cancellationCodesFromMessage(msg string) []string {
	start, end := strings.LastIndex(msg, "["), strings.LastIndex(msg, "]")
	if start == -1 || end < start {
		return nil
	}

	codes := []string{}
	for _, code := range strings.Split(msg[start+1:end], ",") {
		codes = append(codes, strings.TrimSpace(code))
	}

	return codes
}

func appendBeat(history []lbdomain.Beat, beat lbdomain.Beat) []lbdomain.Beat {
	appended := append([]lbdomain.Beat{beat}, history...)
	if len(appended) > lbdomain.MaxSavedBeats {
		appended = appended[:lbdomain.MaxSavedBeats]
	}

	return appended
}

func serializeServiceToDynamoDb(service lbdomain.Service, history []lbdomain.Beat, version int64) (dynamoDbRecord, error) {
	conf, err := json.Marshal(service.Config)
	if err != nil {
		return nil, err
	}
	state, err := json.Marshal(service.State)
	if err != nil {
		return nil, err
	}
	historyJson, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}

	return dynamoDbRecord{
		attrPk:      mkDynamoString(dynamoServicePk(service.Id)),
		attrConf:    mkDynamoString(string(conf)),
		attrState:   mkDynamoString(string(state)),
		attrHistory: mkDynamoString(string(historyJson)),
		attrVersion: mkDynamoNumber(version),
	}, nil
}

func deserializeServiceFromDynamoDb(id string, record dynamoDbRecord) (*lbdomain.Service, []lbdomain.Beat, int64, error) {
	service := &lbdomain.Service{Id: id, Config: lbdomain.DefaultConfig()}
	history := []lbdomain.Beat{}

	stringAttr := func(name string) []byte {
		if attr, found := record[name]; found && attr.S != nil {
			return []byte(*attr.S)
		}
		return nil
	}

	if conf := stringAttr(attrConf); conf != nil {
		if err := json.Unmarshal(conf, &service.Config); err != nil {
			return nil, nil, 0, fmt.Errorf("config of %s: %w", id, err)
		}
	}

	if err := json.Unmarshal(stringAttr(attrState), &service.State); err != nil {
		return nil, nil, 0, fmt.Errorf("state of %s: %w", id, err)
	}

	if historyJson := stringAttr(attrHistory); historyJson != nil {
		if err := json.Unmarshal(historyJson, &history); err != nil {
			return nil, nil, 0, fmt.Errorf("history of %s: %w", id, err)
		}
	}

	version := int64(0)
	if attr, found := record[attrVersion]; found && attr.N != nil {
		parsed, err := strconv.ParseInt(*attr.N, 10, 64)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("version of %s: %w", id, err)
		}
		version = parsed
	}

	return service, history, version, nil
}

// placeholders "#<name>" so we never trip on reserved words
func attrNames(names ...string) map[string]*string {
	placeholders := map[string]*string{}
	for _, name := range names {
		placeholders["#"+name] = aws.String(name)
	}

	return placeholders
}

func pkKey(pk string) dynamoDbRecord {
	return dynamoDbRecord{attrPk: mkDynamoString(pk)}
}

func mkDynamoString(value string) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{
		S: aws.String(value),
	}
}

func mkDynamoNumber(value int64) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{
		N: aws.String(strconv.FormatInt(value, 10)),
	}
}
