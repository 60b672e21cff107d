package memengine

import (
	"errors"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

type bstComparer struct {
	comparer domain.Comparer
}

// CompareKeys implements bst.Comparer.
func (bc *bstComparer) CompareKeys(a any, b any) (int, error) {
	return bc.comparer.Compare(a, b)
}

// CompareValues implements bst.Comparer.
func (bc *bstComparer) CompareValues(a domain.ObjectKey, b domain.ObjectKey) (bool, error) {
	return a == b, nil
}

// primaryKeyIndex maps primary key values to object keys. Every value is
// unique, nil included.
type primaryKeyIndex struct {
	objectType string
	comparer   bst.Comparer[any, domain.ObjectKey]
	tree       bst.BST[any, domain.ObjectKey]
}

func newPrimaryKeyIndex(objectType string, c domain.Comparer) *primaryKeyIndex {
	bc := &bstComparer{comparer: c}
	return &primaryKeyIndex{
		objectType: objectType,
		comparer:   bc,
		tree:       avl.NewBST(true, 8, bc),
	}
}

func (i *primaryKeyIndex) insert(pk any, key domain.ObjectKey) error {
	if err := i.tree.Insert(pk, key); err != nil {
		if errors.As(err, new(bst.ErrUniqueViolated)) {
			return domain.ErrDuplicatePrimaryKey{ObjectType: i.objectType, Key: pk}
		}
		return err
	}
	return nil
}

func (i *primaryKeyIndex) remove(pk any, key domain.ObjectKey) error {
	return i.tree.Delete(pk, &key)
}

func (i *primaryKeyIndex) find(pk any) (domain.ObjectKey, bool, error) {
	node, err := i.tree.Search(pk)
	if err != nil {
		return "", false, err
	}
	if node == nil || len(node.Values()) == 0 {
		return "", false, nil
	}
	return node.Values()[0], true, nil
}

func (i *primaryKeyIndex) len() int {
	return i.tree.GetNumberOfKeys()
}

// reset rebuilds the index from the primary keys of every object in t.
func (i *primaryKeyIndex) reset(t *table) error {
	i.tree = avl.NewBST(true, 8, i.comparer)
	for _, key := range t.order {
		if err := i.insert(t.objects[key].fields[t.schema.PrimaryKey], key); err != nil {
			return err
		}
	}
	return nil
}
